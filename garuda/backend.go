package garuda

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/czx-lab/garuda/network"
	"github.com/czx-lab/garuda/network/jsonx"
	"github.com/czx-lab/garuda/network/tcp"
	"github.com/czx-lab/garuda/network/unix"
	"github.com/czx-lab/garuda/network/ws"
	"github.com/czx-lab/garuda/xlog"
	"github.com/zeromicro/go-zero/core/threading"
	"go.uber.org/zap"
)

var (
	ErrGadgetNameRequired = errors.New("garuda: gadget name required")
	ErrGadgetIDRequired   = errors.New("garuda: gadget id required")
	ErrInvalidParams      = errors.New("garuda: invalid request parameters")
	ErrTerminated         = errors.New("garuda: backend terminated")
	ErrMissingField       = errors.New("garuda: missing body field")
)

// State is the lifecycle position of a Backend.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateActivating
	StateActivated
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

type (
	// Backend is one gadget's session with the Core broker.
	Backend struct {
		conf BackendConf
		// termination line, shared with the connection
		token    string
		dialer   Dialer
		metrics  Metrics
		logger   *zap.Logger
		listener atomic.Pointer[Listener]
		parsers  map[string]func(map[string]json.RawMessage) error

		// guards conn and lifecycle transitions made by callers
		mu          sync.Mutex
		conn        network.Conn
		state       atomic.Int32
		initialized atomic.Bool
		// nil until the first compatible gadget list arrives
		gadgets atomic.Pointer[[]Gadget]
	}

	source struct {
		SourceGadgetName string `json:"sourceGadgetName"`
		SourceGadgetID   string `json:"sourceGadgetID"`
	}
	compatibleListBody struct {
		FileExtension string `json:"fileExtension"`
		FileFormat    string `json:"fileFormat"`
		source
	}
	sendDataBody struct {
		Data any `json:"data"`
		source
		TargetGadgetName string `json:"targetGadgetName"`
		TargetGadgetID   string `json:"targetGadgetID"`
		IsStream         bool   `json:"isStream"`
	}
	notifyCoreBody struct {
		source
		Type    ResultCode `json:"type"`
		Message string     `json:"message"`
	}
	loadDataResponseBody struct {
		Result ResultCode `json:"result"`
		source
		OriginatorID     string `json:"originatorID"`
		TargetGadgetName string `json:"targetGadgetName"`
		TargetGadgetID   string `json:"targetGadgetID"`
	}
	loadGadgetResponseBody struct {
		Result ResultCode `json:"result"`
		source
		OriginatorID     string `json:"originatorID"`
		LoadedGadgetName string `json:"loadedGadgetName"`
		LoadedGadgetID   string `json:"loadedGadgetID"`
	}
	notifyGadgetResponseBody struct {
		Result ResultCode `json:"result"`
		source
	}
)

// NewBackend creates an engine for the gadget named in conf. listener may be
// nil and set later with SetListener.
func NewBackend(conf BackendConf, listener Listener, opts ...Option) (*Backend, error) {
	if len(strings.TrimSpace(conf.GadgetName)) == 0 {
		return nil, ErrGadgetNameRequired
	}
	if len(strings.TrimSpace(conf.GadgetID)) == 0 {
		return nil, ErrGadgetIDRequired
	}
	defaultBackendConf(&conf)

	b := &Backend{
		conf:    conf,
		token:   conf.token(),
		metrics: &NoopMetrics{},
		logger:  xlog.Write(),
	}
	b.dialer = b.dial
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(zap.String("gadget", conf.GadgetName), zap.String("gadget_id", conf.GadgetID))
	b.SetListener(listener)
	b.parsers = b.inboundParsers()

	return b, nil
}

func (b *Backend) dial(ctx context.Context) (network.Conn, error) {
	opts := []tcp.Option{tcp.WithMetrics(b.metrics), tcp.WithLogger(b.logger)}

	var (
		conn *tcp.TcpConn
		err  error
	)
	switch b.conf.Transport {
	case TransportWs:
		conn, err = ws.Dial(ctx, &b.conf.Ws, opts...)
	case TransportUnix:
		conn, err = unix.Dial(ctx, &b.conf.Unix, opts...)
	default:
		conn, err = tcp.Dial(ctx, &b.conf.Tcp, opts...)
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SetListener replaces the event listener.
func (b *Backend) SetListener(l Listener) {
	if l == nil {
		l = func(Event) {}
	}
	b.listener.Store(&l)
}

func (b *Backend) emit(ev Event) {
	b.metrics.IncEvents(string(ev.ID))
	b.logger.Debug("garuda: event", zap.String("event", string(ev.ID)), zap.Int("code", int(ev.Code)))

	listener := *b.listener.Load()
	threading.RunSafe(func() {
		listener(ev)
	})
}

// Initialize connects to the broker and requests activation. It does nothing
// once the backend has left StateUninitialized, and returns ErrTerminated
// after the session ended. A failed connect is also reported as a
// connection_terminated event.
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	switch b.State() {
	case StateUninitialized:
	case StateTerminated:
		b.mu.Unlock()
		return ErrTerminated
	default:
		b.mu.Unlock()
		return nil
	}
	b.setState(StateConnecting)
	b.mu.Unlock()

	conn, err := b.dialer(ctx)
	if err != nil {
		b.logger.Warn("garuda: cannot connect to core", zap.Error(err))
		b.setState(StateTerminated)
		b.emit(Event{ID: EventConnectionTerminated, Payload: errorPayload(err)})
		return err
	}

	b.mu.Lock()
	if b.State() == StateTerminated {
		b.mu.Unlock()
		conn.Close()
		return ErrTerminated
	}
	b.conn = conn
	b.setState(StateConnected)
	b.mu.Unlock()

	b.emit(Event{ID: EventConnectionNotInitialized})
	conn.Bind(b.HandleRead)
	conn.BindClose(b.handleClose)
	conn.Start()

	err = b.ActivateGadget()

	b.initialized.Store(true)
	if b.State() == StateTerminated {
		b.initialized.Store(false)
	}
	b.state.CompareAndSwap(int32(StateConnected), int32(StateActivating))

	return err
}

// StopBackend closes the connection without notifying the broker. It is
// idempotent; the backend cannot be initialized again.
func (b *Backend) StopBackend() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.setState(StateTerminated)
	b.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	b.initialized.Store(false)
}

func (b *Backend) IsInitialized() bool {
	return b.initialized.Load()
}

func (b *Backend) State() State {
	return State(b.state.Load())
}

func (b *Backend) setState(s State) {
	b.state.Store(int32(s))
}

func (b *Backend) GadgetName() string {
	return b.conf.GadgetName
}

func (b *Backend) GadgetID() string {
	return b.conf.GadgetID
}

// CompatibleGadgets returns a copy of the last compatible gadget list, or
// an empty slice when none has been received.
func (b *Backend) CompatibleGadgets() []Gadget {
	gadgets, _ := b.CompatibleGadgetsReceived()
	if gadgets == nil {
		return []Gadget{}
	}
	return gadgets
}

// CompatibleGadgetsReceived is CompatibleGadgets reporting whether a list
// has been received at all.
func (b *Backend) CompatibleGadgetsReceived() ([]Gadget, bool) {
	p := b.gadgets.Load()
	if p == nil {
		return nil, false
	}
	return slices.Clone(*p), true
}

func (b *Backend) connection() network.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.conn
}

func (b *Backend) identity() source {
	return source{
		SourceGadgetName: b.conf.GadgetName,
		SourceGadgetID:   b.conf.GadgetID,
	}
}

// ActivateGadget announces this gadget to the broker. Initialize already
// sends it; only a failed activation is reported back.
func (b *Backend) ActivateGadget() error {
	return b.request(TagActivateGadgetRequest, b.identity())
}

// RequestCompatibleGadgetList asks for the gadgets able to consume files
// with the given extension and format. Blank arguments send nothing.
func (b *Backend) RequestCompatibleGadgetList(ext, format string) error {
	if len(strings.TrimSpace(ext)) == 0 || len(strings.TrimSpace(format)) == 0 {
		return ErrInvalidParams
	}

	return b.request(TagGetCompatibleGadgetListRequest, compatibleListBody{
		FileExtension: ext,
		FileFormat:    format,
		source:        b.identity(),
	})
}

// SendDataToGadget relays data to the target gadget through the broker.
func (b *Backend) SendDataToGadget(data any, targetName, targetID string, stream bool) error {
	return b.request(TagSendDataToGadgetRequest, sendDataBody{
		Data:             data,
		source:           b.identity(),
		TargetGadgetName: targetName,
		TargetGadgetID:   targetID,
		IsStream:         stream,
	})
}

// SendNotificationToCore sends a notification on behalf of gadget. The
// broker does not answer it.
func (b *Backend) SendNotificationToCore(gadget Gadget, typ ResultCode, message string) error {
	return b.request(TagSendNotificationToCoreRequest, notifyCoreBody{
		source: source{
			SourceGadgetName: gadget.Name,
			SourceGadgetID:   gadget.ID,
		},
		Type:    typ,
		Message: message,
	})
}

// ResponseLoadData answers a load_data_request or load_data_stream_request.
func (b *Backend) ResponseLoadData(targetName, targetID string, code ResultCode) error {
	if code == 0 {
		return ErrInvalidParams
	}

	return b.request(TagLoadDataResponse, loadDataResponseBody{
		Result:           code,
		source:           b.identity(),
		OriginatorID:     b.conf.GadgetID,
		TargetGadgetName: targetName,
		TargetGadgetID:   targetID,
	})
}

// ResponseLoadGadget answers a load_gadget_request.
func (b *Backend) ResponseLoadGadget(loadedName, loadedID string, code ResultCode) error {
	if code == 0 {
		return ErrInvalidParams
	}

	return b.request(TagLoadGadgetResponse, loadGadgetResponseBody{
		Result:           code,
		source:           b.identity(),
		OriginatorID:     b.conf.GadgetID,
		LoadedGadgetName: loadedName,
		LoadedGadgetID:   loadedID,
	})
}

// ResponseSendNotificationToGadget answers a
// send_notification_to_gadget_request.
func (b *Backend) ResponseSendNotificationToGadget(sourceName, sourceID string, code ResultCode) error {
	if code == 0 {
		return ErrInvalidParams
	}

	return b.request(TagSendNotificationToGadgetResponse, notifyGadgetResponseBody{
		Result: code,
		source: source{
			SourceGadgetName: sourceName,
			SourceGadgetID:   sourceID,
		},
	})
}

func (b *Backend) request(tag string, body any) error {
	line, err := jsonx.Encode(jsonx.Header{ID: tag, Version: ProtocolVersion}, body)
	if err != nil {
		b.logger.Error("garuda: cannot encode request", zap.String("tag", tag), zap.Error(err))
		b.emit(Event{ID: EventJsonDumpsError, Payload: errorPayload(err)})
		return err
	}

	conn := b.connection()
	if conn == nil {
		b.logger.Warn("garuda: no connection", zap.String("tag", tag))
		b.emit(Event{ID: EventConnectionTerminated})
		return network.ErrConnectTerminated
	}

	if err := conn.Send(line); err != nil {
		b.logger.Error("garuda: send failed", zap.String("tag", tag), zap.Error(err))
		if errors.Is(err, network.ErrConnectTerminated) {
			b.setState(StateTerminated)
		}
		b.emit(Event{ID: EventConnectionTerminated, Payload: errorPayload(err)})
		return err
	}

	b.logger.Debug("garuda: sent", zap.String("tag", tag))
	return nil
}

// HandleRead dispatches one line received from the broker. It is bound to
// the connection by Initialize and exported for alternative transports.
func (b *Backend) HandleRead(line string) {
	if strings.TrimSpace(line) == b.token {
		b.logger.Info("garuda: core ended the session")
		b.setState(StateTerminated)
		b.emit(Event{
			ID:      EventConnectionTerminated,
			Payload: ErrorPayload{Message: MsgRemoteHostClosed},
		})
		return
	}

	env, err := jsonx.Decode(line)
	if err != nil {
		tag, _ := jsonx.ExtractType(line)
		b.logger.Warn("garuda: malformed line", zap.String("tag", tag), zap.Error(err))
		b.emit(Event{ID: EventJsonParseError, Payload: errorPayload(err)})
		return
	}

	tag := env.Header.ID
	parse, ok := b.parsers[tag]
	if !ok {
		b.metrics.IncDroppedLines(network.DropReasonUnknown)
		b.logger.Debug("garuda: unknown tag dropped", zap.String("tag", tag))
		return
	}
	b.logger.Debug("garuda: received", zap.String("tag", tag))

	fields, err := env.Fields()
	if err == nil {
		err = parse(fields)
	}
	if err != nil {
		b.logger.Warn("garuda: cannot parse body", zap.String("tag", tag), zap.Error(err))
		b.emit(Event{ID: EventJsonParseError, Payload: errorPayload(err)})
	}
}

func (b *Backend) handleClose(cause error) {
	if b.State() == StateTerminated {
		return
	}
	b.setState(StateTerminated)
	b.emit(Event{
		ID:      EventConnectionTerminated,
		Payload: ErrorPayload{Message: MsgRemoteHostClosed, Err: cause},
	})
}
