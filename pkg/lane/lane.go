package lane

import (
	"context"
	"time"
)

// Transport moves opaque message bodies through named lanes with
// at-least-once semantics. A pulled delivery stays invisible to other
// consumers until it is acked, released or dead-lettered, or until the
// transport's visibility timeout expires.
type Transport interface {
	// Publish appends body to lane. It returns once the transport has
	// durably accepted the message.
	Publish(ctx context.Context, lane string, body []byte) error
	// PullBatch returns up to limit visible deliveries from lane, waiting at
	// most wait for the first one. An empty batch is not an error.
	PullBatch(ctx context.Context, lane string, limit int, wait time.Duration) ([]Delivery, error)
	// Ack removes a delivery permanently.
	Ack(ctx context.Context, d Delivery) error
	// ReturnWithDelay makes a delivery visible again after delay.
	ReturnWithDelay(ctx context.Context, d Delivery, delay time.Duration) error
	// DeadLetter moves a delivery to the lane's dead-letter destination.
	DeadLetter(ctx context.Context, d Delivery, reason string) error
}

// Delivery is one received copy of a message.
type Delivery struct {
	Lane string
	ID   string
	// Receipt identifies this particular receive; operations with a stale
	// receipt fail with ErrStaleReceipt.
	Receipt string
	Body    []byte
	// ReceiveCount is how many times the message has been received,
	// including this one.
	ReceiveCount int
}

// DeadLetter is an entry of a dead-letter destination.
type DeadLetter struct {
	ID       string    `json:"id"`
	Lane     string    `json:"lane"`
	Body     []byte    `json:"body"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
