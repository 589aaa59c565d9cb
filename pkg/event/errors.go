package event

import "errors"

var (
	ErrInvalidEvent       = errors.New("invalid event")
	ErrUnknownType        = errors.New("unknown event type")
	ErrUnknownChannel     = errors.New("unknown channel")
	ErrUnknownCriticality = errors.New("unknown criticality")
)
