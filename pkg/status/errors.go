package status

import "errors"

var (
	ErrNotFound          = errors.New("delivery attempt not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrStoreUnavailable  = errors.New("status store unavailable")
)
