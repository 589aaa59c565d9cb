package dispatcher

import "errors"

var (
	ErrNilTransport = errors.New("dispatcher: lane transport is nil")
	// ErrDispatchFailed is returned when a publish keeps failing after all retries.
	ErrDispatchFailed = errors.New("dispatch failed")
	ErrInvalidMessage = errors.New("invalid lane message")
)
