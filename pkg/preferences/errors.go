package preferences

import "errors"

var (
	// ErrNotFound means the user has no saved profile.
	ErrNotFound = errors.New("preferences not found")

	ErrStoreUnavailable = errors.New("preference store unavailable")
	ErrMissingUserID    = errors.New("preferences: user id is required")
	ErrInvalidClock     = errors.New("invalid quiet hours clock, want HH:MM")
	ErrInvalidTimezone  = errors.New("unknown quiet hours timezone")
)
