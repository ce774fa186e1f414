package garuda

// EventID names what the engine reports to its Listener.
type EventID string

const (
	EventActivateGadgetResponse          EventID = "activate_gadget_response"
	EventLoadGadgetRequest               EventID = "load_gadget_request"
	EventGetCompatibleGadgetListResponse EventID = "get_compatible_gadget_list_response"
	EventSendDataToGadgetResponse        EventID = "send_data_to_gadget_response"
	EventLoadDataRequest                 EventID = "load_data_request"
	EventLoadDataStreamRequest           EventID = "load_data_stream_request"
	EventSendNotificationToGadgetRequest EventID = "send_notification_to_gadget_request"
	EventConnectionTerminated            EventID = "connection_terminated"
	EventConnectionNotInitialized        EventID = "connection_not_initialized"
	EventJsonParseError                  EventID = "json_parse_error"
	EventJsonDumpsError                  EventID = "json_dumps_error"
)

type (
	// Event is one notification to the application. Code is zero when the
	// event carries no result code; Payload is nil or one of the payload
	// types below (or a Gadget).
	Event struct {
		ID      EventID
		Code    ResultCode
		Payload any
	}

	// Listener receives every event of one Backend, on the receive
	// goroutine for inbound traffic and on the caller's goroutine for
	// failures of the caller's own requests.
	Listener func(Event)

	ErrorPayload struct {
		Message string
		Err     error
	}

	LoadDataPayload struct {
		Gadget Gadget
		Data   any
	}

	LoadGadgetPayload struct {
		Gadget Gadget
		Path   string
	}

	NotificationPayload struct {
		Message string
		Gadget  Gadget
	}
)

// HasCode reports whether the event carries a result code.
func (e Event) HasCode() bool {
	return e.Code != 0
}

func errorPayload(err error) ErrorPayload {
	return ErrorPayload{Message: err.Error(), Err: err}
}
