package errors

import "fmt"

var (
	ErrNotConnected       = fmt.Errorf("session not connected")
	ErrMissingToken       = fmt.Errorf("no bearer token available")
	ErrUnknownMessage     = fmt.Errorf("message not found in any local log")
	ErrUnknownScope       = fmt.Errorf("scope is not known to the registry")
	ErrNoActiveScope      = fmt.Errorf("no active scope")
	ErrAmbiguousScope     = fmt.Errorf("scope must reference exactly one channel or conversation")
	ErrOutboxClosed       = fmt.Errorf("outbox closed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrInvalidChannelSpec = fmt.Errorf("invalid channel creation request")
)
