package httpserver

import "errors"

var (
	ErrStart    = errors.New("httpserver: cannot serve")
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
	ErrRunning  = errors.New("httpserver: already running")
)
