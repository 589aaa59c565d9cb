package lane

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memMessage struct {
	id           string
	body         []byte
	visibleAt    time.Time
	receipt      string
	receiveCount int
}

// MemoryTransport is an in-process Transport for tests and single-binary
// runs. Messages are delivered in publish order within a lane; a message
// whose visibility timeout expires is redelivered.
type MemoryTransport struct {
	mu         sync.Mutex
	lanes      map[string][]*memMessage
	dead       map[string][]DeadLetter
	visibility time.Duration
	poll       time.Duration
	now        func() time.Time
	closed     bool
}

// MemoryOption configures a MemoryTransport.
type MemoryOption func(*MemoryTransport)

// WithMemoryClock replaces time.Now for visibility bookkeeping.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(t *MemoryTransport) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMemoryConfig applies the visibility timeout and poll interval of cfg.
func WithMemoryConfig(cfg Config) MemoryOption {
	return func(t *MemoryTransport) {
		if cfg.VisibilityTimeout > 0 {
			t.visibility = cfg.VisibilityTimeout
		}
		if cfg.PollInterval > 0 {
			t.poll = cfg.PollInterval
		}
	}
}

// NewMemoryTransport returns an empty in-process transport.
func NewMemoryTransport(opts ...MemoryOption) *MemoryTransport {
	t := &MemoryTransport{
		lanes:      make(map[string][]*memMessage),
		dead:       make(map[string][]DeadLetter),
		visibility: 30 * time.Second,
		poll:       5 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *MemoryTransport) Publish(_ context.Context, lane string, body []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTransportClosed
	}
	t.lanes[lane] = append(t.lanes[lane], &memMessage{
		id:        uuid.NewString(),
		body:      slices.Clone(body),
		visibleAt: t.now(),
	})
	return nil
}

func (t *MemoryTransport) PullBatch(ctx context.Context, lane string, limit int, wait time.Duration) ([]Delivery, error) {
	if limit <= 0 {
		limit = 1
	}
	deadline := time.Now().Add(wait)
	for {
		batch, err := t.claim(lane, limit)
		if err != nil || len(batch) > 0 {
			return batch, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(t.poll, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *MemoryTransport) claim(lane string, limit int) ([]Delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTransportClosed
	}

	now := t.now()
	msgs := t.lanes[lane]
	slices.SortStableFunc(msgs, func(a, b *memMessage) int {
		return a.visibleAt.Compare(b.visibleAt)
	})

	var batch []Delivery
	for _, m := range msgs {
		if len(batch) == limit {
			break
		}
		if m.visibleAt.After(now) {
			continue
		}
		m.receiveCount++
		m.receipt = uuid.NewString()
		m.visibleAt = now.Add(t.visibility)
		batch = append(batch, Delivery{
			Lane:         lane,
			ID:           m.id,
			Receipt:      m.receipt,
			Body:         slices.Clone(m.body),
			ReceiveCount: m.receiveCount,
		})
	}
	return batch, nil
}

func (t *MemoryTransport) Ack(_ context.Context, d Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, err := t.take(d)
	return err
}

func (t *MemoryTransport) ReturnWithDelay(_ context.Context, d Delivery, delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.find(d)
	if err != nil {
		return err
	}
	m.receipt = ""
	m.visibleAt = t.now().Add(max(delay, 0))
	return nil
}

func (t *MemoryTransport) DeadLetter(_ context.Context, d Delivery, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, err := t.take(d)
	if err != nil {
		return err
	}
	t.dead[d.Lane] = append(t.dead[d.Lane], DeadLetter{
		ID:       m.id,
		Lane:     d.Lane,
		Body:     m.body,
		Reason:   reason,
		FailedAt: t.now().UTC(),
	})
	return nil
}

// Close makes every further operation fail with ErrTransportClosed.
func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Len returns the number of messages in lane, in flight or not.
func (t *MemoryTransport) Len(lane string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lanes[lane])
}

// DeadLetters returns a copy of the dead-letter entries of lane.
func (t *MemoryTransport) DeadLetters(lane string) []DeadLetter {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.dead[lane])
}

// Must be called with lock held.
func (t *MemoryTransport) find(d Delivery) (*memMessage, error) {
	for _, m := range t.lanes[d.Lane] {
		if m.id == d.ID {
			if m.receipt == "" || m.receipt != d.Receipt {
				return nil, ErrStaleReceipt
			}
			return m, nil
		}
	}
	return nil, ErrStaleReceipt
}

// Must be called with lock held.
func (t *MemoryTransport) take(d Delivery) (*memMessage, error) {
	m, err := t.find(d)
	if err != nil {
		return nil, err
	}
	t.lanes[d.Lane] = slices.DeleteFunc(t.lanes[d.Lane], func(x *memMessage) bool { return x == m })
	return m, nil
}
