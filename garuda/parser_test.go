package garuda

import (
	"testing"

	"github.com/czx-lab/garuda/eventbus"
	"github.com/czx-lab/garuda/network/jsonx"
	"github.com/czx-lab/garuda/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func offline(t *testing.T) (*Backend, *recorder) {
	t.Helper()

	rec := &recorder{}
	b, err := NewBackend(BackendConf{GadgetName: testName, GadgetID: testID}, rec.listen, WithLogger(xlog.Nop()))
	require.NoError(t, err)

	return b, rec
}

func line(t *testing.T, tag string, body any) string {
	t.Helper()

	l, err := jsonx.Encode(jsonx.Header{ID: tag, Version: ProtocolVersion}, body)
	require.NoError(t, err)
	return l
}

func TestCompatibleGadgetListEmpty(t *testing.T) {
	b, rec := offline(t)

	_, received := b.CompatibleGadgetsReceived()
	assert.False(t, received)
	assert.NotNil(t, b.CompatibleGadgets())
	assert.Empty(t, b.CompatibleGadgets())

	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": []any{},
		"result":  200,
	}))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventGetCompatibleGadgetListResponse, events[0].ID)
	assert.Equal(t, Success, events[0].Code)

	gadgets, received := b.CompatibleGadgetsReceived()
	assert.True(t, received)
	assert.Empty(t, gadgets)
}

func TestCompatibleGadgetListReplacesBeforeNotify(t *testing.T) {
	rec := &recorder{}
	var seen []Gadget
	var b *Backend
	b, err := NewBackend(BackendConf{GadgetName: testName, GadgetID: testID}, func(ev Event) {
		rec.listen(ev)
		if ev.ID == EventGetCompatibleGadgetListResponse {
			seen = b.CompatibleGadgets()
		}
	}, WithLogger(xlog.Nop()))
	require.NoError(t, err)

	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": []any{
			map[string]any{"name": "Cytoscape", "ID": "cy-1", "iconPath": "/i.png", "provider": "NRNB", "gateway_id": "gw"},
			map[string]any{"name": "Bare", "ID": nil},
		},
		"result": "403",
	}))

	require.Len(t, seen, 2)
	assert.Equal(t, Gadget{Name: "Cytoscape", ID: "cy-1", IconPath: "/i.png", Provider: "NRNB", GatewayID: "gw"}, seen[0])
	assert.Equal(t, Gadget{Name: "Bare"}, seen[1])
	assert.Equal(t, NoCompatibleGadgetFound, rec.all()[0].Code)

	// callers get copies
	seen[0].Name = "mutated"
	assert.Equal(t, "Cytoscape", b.CompatibleGadgets()[0].Name)

	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": nil,
		"result":  200,
	}))
	gadgets, received := b.CompatibleGadgetsReceived()
	assert.True(t, received)
	assert.Empty(t, gadgets)
}

func TestCompatibleGadgetListMalformedKeepsCache(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": []any{map[string]any{"name": "Keep", "ID": "k"}},
		"result":  200,
	}))
	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": []any{},
	}))
	b.HandleRead(line(t, TagGetCompatibleGadgetListResponse, map[string]any{
		"gadgets": "nope",
		"result":  200,
	}))

	assert.Len(t, rec.byID(EventJsonParseError), 2)
	assert.Equal(t, []Gadget{{Name: "Keep", ID: "k"}}, b.CompatibleGadgets())
}

func TestMalformedJSON(t *testing.T) {
	b, rec := offline(t)

	before := b.State()
	b.HandleRead(`{"header":{"id":"ActivateGadgetResponse","version":"0.2"},"body":{` + "\n")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventJsonParseError, events[0].ID)
	payload, ok := events[0].Payload.(ErrorPayload)
	require.True(t, ok)
	assert.ErrorIs(t, payload.Err, jsonx.ErrJsonDecode)

	assert.Equal(t, before, b.State())
	assert.False(t, b.IsInitialized())
	_, received := b.CompatibleGadgetsReceived()
	assert.False(t, received)
}

func TestMalformedLineLogsTag(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	rec := &recorder{}
	b, err := NewBackend(BackendConf{GadgetName: testName, GadgetID: testID}, rec.listen, WithLogger(zap.New(core)))
	require.NoError(t, err)

	b.HandleRead(`{"header":{"id":"LoadGadgetRequest","version":"0.2"},"body":{` + "\n")

	require.Len(t, rec.byID(EventJsonParseError), 1)
	entries := logs.FilterMessage("garuda: malformed line").All()
	require.Len(t, entries, 1)
	assert.Equal(t, TagLoadGadgetRequest, entries[0].ContextMap()["tag"])
}

func TestUnknownTagDropped(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, "FutureRequest", map[string]any{"x": 1}))
	assert.Empty(t, rec.all())
}

func TestActivateMissingResult(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagActivateGadgetResponse, map[string]any{}))
	b.HandleRead(line(t, TagActivateGadgetResponse, map[string]any{"result": nil}))
	assert.Len(t, rec.byID(EventJsonParseError), 2)
	assert.Empty(t, rec.byID(EventActivateGadgetResponse))
}

func TestSendDataToGadgetResponse(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagSendDataToGadgetResponse, map[string]any{
		"result":           200,
		"targetGadgetName": "Cytoscape",
		"targetGadgetID":   "cy-1",
	}))
	b.HandleRead(line(t, TagSendDataToGadgetResponse, map[string]any{
		"result": 508,
	}))
	b.HandleRead(line(t, TagSendDataToGadgetResponse, map[string]any{
		"result": 200,
	}))

	events := rec.byID(EventSendDataToGadgetResponse)
	require.Len(t, events, 2)
	assert.Equal(t, Success, events[0].Code)
	assert.Equal(t, Gadget{Name: "Cytoscape", ID: "cy-1"}, events[0].Payload)
	assert.Equal(t, IncompatibleDataType, events[1].Code)
	assert.Nil(t, events[1].Payload)
	assert.Len(t, rec.byID(EventJsonParseError), 1)
}

func TestLoadDataRequest(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagLoadDataRequest, map[string]any{
		"originGadgetName": "Origin",
		"originGadgetID":   "o-1",
		"isStream":         false,
		"data":             "/tmp/hsa00010.xml",
	}))
	b.HandleRead(line(t, TagLoadDataRequest, map[string]any{
		"originGadgetName": "Origin",
		"originGadgetID":   "o-1",
		"isStream":         "yes",
		"data":             map[string]any{"chunk": 1},
	}))
	b.HandleRead(line(t, TagLoadDataRequest, map[string]any{
		"originGadgetName": "Origin",
		"originGadgetID":   "o-1",
		"data":             "x",
	}))

	plain := rec.byID(EventLoadDataRequest)
	require.Len(t, plain, 1)
	assert.False(t, plain[0].HasCode())
	assert.Equal(t, LoadDataPayload{
		Gadget: Gadget{Name: "Origin", ID: "o-1"},
		Data:   "/tmp/hsa00010.xml",
	}, plain[0].Payload)

	stream := rec.byID(EventLoadDataStreamRequest)
	require.Len(t, stream, 1)
	assert.Equal(t, map[string]any{"chunk": float64(1)}, stream[0].Payload.(LoadDataPayload).Data)

	assert.Len(t, rec.byID(EventJsonParseError), 1, "missing isStream is a parse error")
}

func TestLoadGadgetRequest(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagLoadGadgetRequest, map[string]any{
		"loadableGadgetName":       "Viewer",
		"loadableGadgetID":         "v-1",
		"loadableGadgetSourcePath": "/opt/gadgets/viewer",
	}))
	b.HandleRead(line(t, TagLoadGadgetRequest, map[string]any{
		"loadableGadgetName": "Viewer",
		"loadableGadgetID":   "v-1",
	}))

	events := rec.byID(EventLoadGadgetRequest)
	require.Len(t, events, 1)
	assert.Equal(t, LoadGadgetPayload{
		Gadget: Gadget{Name: "Viewer", ID: "v-1"},
		Path:   "/opt/gadgets/viewer",
	}, events[0].Payload)
	assert.Len(t, rec.byID(EventJsonParseError), 1)
}

func TestNotificationAddressing(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead(line(t, TagSendNotificationToGadgetRequest, map[string]any{
		"targetGadgetName": "Someone",
		"targetGadgetID":   "else",
		"type":             602,
		"message":          "front",
	}))
	b.HandleRead(line(t, TagSendNotificationToGadgetRequest, map[string]any{
		"targetGadgetName": testName,
		"targetGadgetID":   "wrong-id",
		"type":             602,
		"message":          "front",
	}))
	assert.Empty(t, rec.all(), "notifications for other gadgets are dropped")

	b.HandleRead(line(t, TagSendNotificationToGadgetRequest, map[string]any{
		"targetGadgetName": testName,
		"targetGadgetID":   testID,
		"type":             604,
		"message":          "shutting down",
	}))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventSendNotificationToGadgetRequest, events[0].ID)
	assert.Equal(t, NotificationTerminate, events[0].Code)
	assert.Equal(t, NotificationPayload{
		Message: "shutting down",
		Gadget:  Gadget{Name: testName, ID: testID},
	}, events[0].Payload)
}

func TestTerminationTokenOffline(t *testing.T) {
	b, rec := offline(t)

	b.HandleRead("  stop \n")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventConnectionTerminated, events[0].ID)
	assert.Equal(t, ErrorPayload{Message: MsgRemoteHostClosed}, events[0].Payload)
	assert.Equal(t, StateTerminated, b.State())
}

func TestPanickingListenerDoesNotEscape(t *testing.T) {
	b, err := NewBackend(BackendConf{GadgetName: testName, GadgetID: testID}, func(Event) {
		panic("listener bug")
	}, WithLogger(xlog.Nop()))
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		b.HandleRead(line(t, TagActivateGadgetResponse, map[string]any{"result": 401}))
	})
}

func TestBusListener(t *testing.T) {
	bus := eventbus.NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeOnChannel(string(EventLoadGadgetRequest))
	all := bus.SubscribeOnChannel(eventbus.All)

	rec := &recorder{}
	b, err := NewBackend(BackendConf{GadgetName: testName, GadgetID: testID},
		Chain(rec.listen, BusListener(bus)), WithLogger(xlog.Nop()))
	require.NoError(t, err)

	b.HandleRead(line(t, TagLoadGadgetRequest, map[string]any{
		"loadableGadgetName":       "Viewer",
		"loadableGadgetID":         "v-1",
		"loadableGadgetSourcePath": "/opt",
	}))

	msg := <-ch
	ev, ok := msg.Data.(Event)
	require.True(t, ok)
	assert.Equal(t, EventLoadGadgetRequest, ev.ID)
	assert.Equal(t, string(EventLoadGadgetRequest), (<-all).Topic)
	assert.Len(t, rec.all(), 1)
}
