package garuda

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// ProtocolVersion is sent in every outbound header.
	ProtocolVersion = "0.2"
	// TerminationToken is the non-JSON line the broker sends to end a session.
	TerminationToken = "stop"
	// MsgRemoteHostClosed is the reason carried by connection_terminated when
	// the broker ended the session.
	MsgRemoteHostClosed = "RemoteHostClosedError"
)

// client → broker
const (
	TagActivateGadgetRequest            = "ActivateGadgetRequest"
	TagGetCompatibleGadgetListRequest   = "GetCompatibleGadgetListRequest"
	TagSendDataToGadgetRequest          = "SendDataToGadgetRequest"
	TagSendNotificationToCoreRequest    = "SendNotificationToCoreRequest"
	TagLoadDataResponse                 = "LoadDataResponse"
	TagLoadGadgetResponse               = "LoadGadgetResponse"
	TagSendNotificationToGadgetResponse = "SendNotificationToGadgetResponse"
)

// broker → client
const (
	TagActivateGadgetResponse          = "ActivateGadgetResponse"
	TagGetCompatibleGadgetListResponse = "GetCompatibleGadgetListResponse"
	TagSendDataToGadgetResponse        = "SendDataToGadgetResponse"
	TagLoadDataRequest                 = "LoadDataRequest"
	TagLoadGadgetRequest               = "LoadGadgetRequest"
	TagSendNotificationToGadgetRequest = "SendNotificationToGadgetRequest"
)

// ResultCode is a broker result or notification code. The engine passes
// codes through verbatim and only branches on Success.
type ResultCode int

const (
	Success                     ResultCode = 200
	GadgetAlreadyConnected      ResultCode = 400
	GadgetAppKeyMismatch        ResultCode = 401
	NoCompatibleGadgetFound     ResultCode = 403
	NoCoreDatabaseConnection    ResultCode = 404
	GadgetNotFoundInCoreDB      ResultCode = 405
	DatabaseQueryError          ResultCode = 409
	DataResourceNotFound        ResultCode = 415
	InternalError               ResultCode = 500
	UnableToParseJSON           ResultCode = 501
	FileNotInOutboundList       ResultCode = 503
	IncompatibleDataType        ResultCode = 508
	GadgetAlreadyRegistered     ResultCode = 509
	IncompleteRequestParameters ResultCode = 512
	InvalidNotificationCode     ResultCode = 513
	CoreDBOperationFailed       ResultCode = 515
	GadgetNotActivated          ResultCode = 518
	BringToFront                ResultCode = 602
	AnyErrorMessagesFromCore    ResultCode = 603
	TerminateGadgets            ResultCode = 604

	NotificationBringToFront = BringToFront
	NotificationError        = AnyErrorMessagesFromCore
	NotificationTerminate    = TerminateGadgets
)

var codeNames = map[ResultCode]string{
	Success:                     "Success",
	GadgetAlreadyConnected:      "GadgetAlreadyConnected",
	GadgetAppKeyMismatch:        "GadgetAppKeyMismatch",
	NoCompatibleGadgetFound:     "NoCompatibleGadgetFound",
	NoCoreDatabaseConnection:    "NoCoreDatabaseConnection",
	GadgetNotFoundInCoreDB:      "GadgetNotFoundInCoreDB",
	DatabaseQueryError:          "DatabaseQueryError",
	DataResourceNotFound:        "DataResourceNotFound",
	InternalError:               "InternalError",
	UnableToParseJSON:           "UnableToParseJSON",
	FileNotInOutboundList:       "FileNotInOutboundList",
	IncompatibleDataType:        "IncompatibleDataType",
	GadgetAlreadyRegistered:     "GadgetAlreadyRegistered",
	IncompleteRequestParameters: "IncompleteRequestParameters",
	InvalidNotificationCode:     "InvalidNotificationCode",
	CoreDBOperationFailed:       "CoreDBOperationFailed",
	GadgetNotActivated:          "GadgetNotActivated",
	BringToFront:                "BringToFront",
	AnyErrorMessagesFromCore:    "AnyErrorMessagesFromCore",
	TerminateGadgets:            "TerminateGadgets",
}

func (c ResultCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "ResultCode(" + strconv.Itoa(int(c)) + ")"
}

// Known reports whether c is one of the documented codes.
func (c ResultCode) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// UnmarshalJSON accepts a JSON number or a string holding one.
func (c *ResultCode) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)

	if n, err := strconv.Atoi(raw); err == nil {
		*c = ResultCode(n)
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return fmt.Errorf("garuda: invalid result code %s", string(b))
	}
	*c = ResultCode(int(f))
	return nil
}
