package garuda

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/czx-lab/garuda/network"
	"go.uber.org/zap"
)

type body map[string]json.RawMessage

func (b *Backend) inboundParsers() map[string]func(map[string]json.RawMessage) error {
	return map[string]func(map[string]json.RawMessage) error{
		TagActivateGadgetResponse:          b.parseActivateGadget,
		TagGetCompatibleGadgetListResponse: b.parseCompatibleGadgetList,
		TagSendDataToGadgetResponse:        b.parseSendDataToGadget,
		TagLoadDataRequest:                 b.parseLoadData,
		TagLoadGadgetRequest:               b.parseLoadGadget,
		TagSendNotificationToGadgetRequest: b.parseSendNotificationToGadget,
	}
}

// A successful activation is silent.
func (b *Backend) parseActivateGadget(fields map[string]json.RawMessage) error {
	code, err := body(fields).code("result")
	if err != nil {
		return err
	}

	if code == Success {
		if b.state.CompareAndSwap(int32(StateActivating), int32(StateActivated)) ||
			b.state.CompareAndSwap(int32(StateConnected), int32(StateActivated)) {
			b.logger.Info("garuda: gadget activated")
		}
		return nil
	}

	b.logger.Warn("garuda: activation refused", zap.Stringer("code", code))
	b.emit(Event{ID: EventActivateGadgetResponse, Code: code})
	return nil
}

// The cache is replaced before the event fires so that the listener can read
// it. A malformed list leaves the previous cache in place.
func (b *Backend) parseCompatibleGadgetList(fields map[string]json.RawMessage) error {
	f := body(fields)
	raw, err := f.get("gadgets")
	if err != nil {
		return err
	}
	code, err := f.code("result")
	if err != nil {
		return err
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("garuda: gadgets: %w", err)
	}

	gadgets := make([]Gadget, 0, len(entries))
	for i, entry := range entries {
		e := body(entry)
		g := Gadget{}
		for key, dst := range map[string]*string{
			"name":       &g.Name,
			"ID":         &g.ID,
			"iconPath":   &g.IconPath,
			"provider":   &g.Provider,
			"gateway_id": &g.GatewayID,
		} {
			if *dst, err = e.optionalText(key); err != nil {
				return fmt.Errorf("garuda: gadgets[%d]: %w", i, err)
			}
		}
		gadgets = append(gadgets, g)
	}

	b.gadgets.Store(&gadgets)
	b.emit(Event{ID: EventGetCompatibleGadgetListResponse, Code: code})
	return nil
}

func (b *Backend) parseSendDataToGadget(fields map[string]json.RawMessage) error {
	f := body(fields)
	code, err := f.code("result")
	if err != nil {
		return err
	}

	if code != Success {
		b.emit(Event{ID: EventSendDataToGadgetResponse, Code: code})
		return nil
	}

	target, err := f.gadget("targetGadgetName", "targetGadgetID")
	if err != nil {
		return err
	}
	b.emit(Event{ID: EventSendDataToGadgetResponse, Code: code, Payload: target})
	return nil
}

func (b *Backend) parseLoadData(fields map[string]json.RawMessage) error {
	f := body(fields)
	origin, err := f.gadget("originGadgetName", "originGadgetID")
	if err != nil {
		return err
	}
	stream, err := f.truthy("isStream")
	if err != nil {
		return err
	}
	raw, err := f.get("data")
	if err != nil {
		return err
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("garuda: data: %w", err)
	}

	id := EventLoadDataRequest
	if stream {
		id = EventLoadDataStreamRequest
	}
	b.emit(Event{ID: id, Payload: LoadDataPayload{Gadget: origin, Data: data}})
	return nil
}

func (b *Backend) parseLoadGadget(fields map[string]json.RawMessage) error {
	f := body(fields)
	loadable, err := f.gadget("loadableGadgetName", "loadableGadgetID")
	if err != nil {
		return err
	}
	path, err := f.text("loadableGadgetSourcePath")
	if err != nil {
		return err
	}

	b.emit(Event{ID: EventLoadGadgetRequest, Payload: LoadGadgetPayload{Gadget: loadable, Path: path}})
	return nil
}

// Notifications addressed to another gadget are dropped.
func (b *Backend) parseSendNotificationToGadget(fields map[string]json.RawMessage) error {
	f := body(fields)
	target, err := f.gadget("targetGadgetName", "targetGadgetID")
	if err != nil {
		return err
	}
	if !target.Is(b.conf.GadgetName, b.conf.GadgetID) {
		b.metrics.IncDroppedLines(network.DropReasonMismatch)
		b.logger.Debug("garuda: notification for another gadget dropped", zap.Stringer("target", target))
		return nil
	}

	typ, err := f.code("type")
	if err != nil {
		return err
	}
	message, err := f.text("message")
	if err != nil {
		return err
	}

	b.emit(Event{
		ID:      EventSendNotificationToGadgetRequest,
		Code:    typ,
		Payload: NotificationPayload{Message: message, Gadget: target},
	})
	return nil
}

func (f body) get(key string) (json.RawMessage, error) {
	raw, ok := f[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return raw, nil
}

func (f body) code(key string) (ResultCode, error) {
	raw, err := f.get(key)
	if err != nil {
		return 0, err
	}
	if isNull(raw) {
		return 0, fmt.Errorf("%w: %s is null", ErrMissingField, key)
	}

	var code ResultCode
	if err := json.Unmarshal(raw, &code); err != nil {
		return 0, fmt.Errorf("garuda: %s: %w", key, err)
	}
	return code, nil
}

// text reads a required scalar as a string. null reads as "".
func (f body) text(key string) (string, error) {
	raw, err := f.get(key)
	if err != nil {
		return "", err
	}
	return scalar(key, raw)
}

func (f body) optionalText(key string) (string, error) {
	raw, ok := f[key]
	if !ok {
		return "", nil
	}
	return scalar(key, raw)
}

func (f body) gadget(nameKey, idKey string) (Gadget, error) {
	name, err := f.text(nameKey)
	if err != nil {
		return Gadget{}, err
	}
	id, err := f.text(idKey)
	if err != nil {
		return Gadget{}, err
	}
	return Gadget{Name: name, ID: id}, nil
}

// truthy reads a required flag the lenient way: false, 0, "", null and empty
// containers are false.
func (f body) truthy(key string) (bool, error) {
	raw, err := f.get(key)
	if err != nil {
		return false, err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("garuda: %s: %w", key, err)
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case string:
		return len(t) > 0, nil
	case []any:
		return len(t) > 0, nil
	case map[string]any:
		return len(t) > 0, nil
	}
	return false, nil
}

func scalar(key string, raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("garuda: %s: %w", key, err)
	}

	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("garuda: %s: not a scalar", key)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
