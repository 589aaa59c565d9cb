package statusapi

import "errors"

var ErrNilTracker = errors.New("statusapi: nil status reader")
