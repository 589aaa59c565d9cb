package consumer

import "errors"

var (
	ErrNilDependency = errors.New("consumer: nil dependency")
	ErrWrongChannel  = errors.New("consumer: message belongs to another channel")
	ErrNoRecord      = errors.New("consumer: no delivery record for message")
)
