package delivery

import "context"

// Content is what a transport delivers to one recipient.
type Content struct {
	Subject string
	Body    string
	// Tag groups deliveries at the provider (the event type).
	Tag string
	// Data carries structured fields for transports that send JSON.
	Data map[string]string
}

// Sender delivers content to a single target address.
// Implementations wrap non-retryable rejections with ErrPermanent; any other
// error is treated as transient by the consumer.
type Sender interface {
	Send(ctx context.Context, target string, c Content) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target string, c Content) error

func (f SenderFunc) Send(ctx context.Context, target string, c Content) error {
	return f(ctx, target, c)
}
