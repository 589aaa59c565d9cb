package mongo

import "errors"

var (
	ErrEmptyConnectionURL = errors.New("mongo: empty connection url")
	ErrEmptyDatabase      = errors.New("mongo: empty database name")
	ErrNotReady           = errors.New("mongo: server not reachable")
	ErrHealthcheckFailed  = errors.New("mongo: healthcheck failed")
)
