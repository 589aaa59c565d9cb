package delivery

import (
	"errors"
	"fmt"
)

var (
	// ErrPermanent marks a rejection that no retry can fix: invalid
	// destination, unsubscribed recipient, malformed content.
	ErrPermanent = errors.New("permanent delivery failure")
	// ErrMissingTarget is permanent: the recipient has no address for the channel.
	ErrMissingTarget = fmt.Errorf("%w: recipient has no address for this channel", ErrPermanent)
	ErrCircuitOpen   = errors.New("delivery circuit breaker is open")
	ErrRateLimited   = errors.New("delivery rate limit wait aborted")
)

// Permanent wraps err with ErrPermanent. Nil stays nil.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err is a permanent rejection.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
