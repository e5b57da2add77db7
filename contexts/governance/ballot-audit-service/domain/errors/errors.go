package errors

import "errors"

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvariantBroken  = errors.New("audit repository invariant violated")
	ErrUnknownEventType = errors.New("unknown ballot event type")
)
