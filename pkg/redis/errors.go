package redis

import "errors"

var (
	ErrEmptyConnectionURL   = errors.New("redis: empty connection url")
	ErrInvalidConnectionURL = errors.New("redis: invalid connection url")
	ErrNotReady             = errors.New("redis: server not reachable")
	ErrHealthcheckFailed    = errors.New("redis: healthcheck failed")
)
