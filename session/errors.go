package session

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAccount   = errors.New("unknown account")
	ErrAlreadyConnected = errors.New("account already connected")
	ErrNoActiveSession  = errors.New("no active session")
	ErrNotAvailable     = errors.New("qr code not available")
	ErrConnectFailed    = errors.New("connect failed")
	ErrSendFailed       = errors.New("send failed")
)

// ConnectError wraps a protocol failure while starting a session.
type ConnectError struct {
	Cause error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed: %v", e.Cause)
}

func (e *ConnectError) Unwrap() error { return e.Cause }

func (e *ConnectError) Is(target error) bool { return target == ErrConnectFailed }

// SendError wraps a protocol failure while sending.
type SendError struct {
	Cause error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Cause)
}

func (e *SendError) Unwrap() error { return e.Cause }

func (e *SendError) Is(target error) bool { return target == ErrSendFailed }
