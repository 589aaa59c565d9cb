package push

import "errors"

var (
	ErrInvalidConfig = errors.New("push: invalid gateway config")
	ErrSendFailed    = errors.New("push: send failed")
)
