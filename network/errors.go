package network

import (
	"errors"
	"fmt"
)

var (
	ErrCannotConnect     = errors.New("network: cannot connect to core")
	ErrConnectTerminated = errors.New("network: connection terminated")
	ErrCannotSend        = errors.New("network: cannot send message")
	ErrLineTooLong       = errors.New("network: line exceeds max size")
)

// CannotSendError is a transport failure that did not tear the socket down.
type CannotSendError struct {
	Code    int
	Message string
}

func (e *CannotSendError) Error() string {
	return fmt.Sprintf("network: cannot send message (code %d): %s", e.Code, e.Message)
}

// Is makes errors.Is(err, ErrCannotSend) match.
func (e *CannotSendError) Is(target error) bool {
	return target == ErrCannotSend
}
