package router

import "errors"

var (
	ErrNilDependency = errors.New("router: nil dependency")
	ErrInvalidEvent  = errors.New("router: invalid event")
	// ErrIncomplete is returned when at least one routed channel could not be
	// recorded or dispatched. The Result still describes every channel.
	ErrIncomplete = errors.New("router: routing incomplete")
)
