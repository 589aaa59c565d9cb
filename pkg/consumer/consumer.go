package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifyrelay/pkg/backoff"
	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// Tracker is the subset of *status.Tracker the consumer needs.
type Tracker interface {
	Transition(ctx context.Context, eventID string, ch event.Channel, from []status.Status, to status.Status, opts ...status.TransitionOption) (status.Attempt, bool, error)
}

// Consumer drains the two lanes of one channel, critical first.
// Each instance is a single sequential loop; run several instances for
// parallelism. Instances coordinate only through the status tracker.
type Consumer struct {
	channel   event.Channel
	lanes     [2]string
	transport lane.Transport
	tracker   Tracker
	sender    delivery.Sender
	backoff   backoff.Strategy

	cfg          Config
	id           string
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
	onDeadLetter DeadLetterHook
}

// New builds a consumer of ch's two lanes. Every dependency is required.
func New(ch event.Channel, transport lane.Transport, tracker Tracker, sender delivery.Sender, opts ...Option) (*Consumer, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: %q", event.ErrUnknownChannel, ch)
	}
	if transport == nil || tracker == nil || sender == nil {
		return nil, ErrNilDependency
	}

	c := &Consumer{
		channel: ch,
		lanes: [2]string{
			event.LaneName(ch, event.Critical),
			event.LaneName(ch, event.NonCritical),
		},
		transport: transport,
		tracker:   tracker,
		sender:    sender,
		cfg:       DefaultConfig(),
		id:        uuid.NewString(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backoff == nil {
		c.backoff = backoff.New(c.cfg.Backoff)
	}
	c.logger = c.logger.With(logger.Channel(ch), logger.WorkerID(c.id))
	return c, nil
}

// Run returns a loop suitable for errgroup. It polls until ctx is
// cancelled, finishes the message in flight, returns the rest of the batch
// to its lane and exits with nil.
func (c *Consumer) Run(ctx context.Context) func() error {
	return func() error {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "consumer started",
			slog.Any("lanes", c.lanes[:]),
			slog.Int("batch_size", c.cfg.BatchSize),
			slog.Int("max_attempts", c.cfg.MaxAttempts),
		)
		defer c.logger.Info("consumer stopped")

		for ctx.Err() == nil {
			if _, err := c.PollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				c.logger.LogAttrs(ctx, slog.LevelWarn, "lane pull failed", logger.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(c.cfg.ErrorPause):
				}
			}
		}
		return nil
	}
}

// PollOnce runs one cycle: pull from the critical lane, and from the
// non-critical lane only if the critical pull came back empty, then process
// the batch. It returns the number of messages pulled.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	var batch []lane.Delivery
	for _, name := range c.lanes {
		var err error
		batch, err = c.transport.PullBatch(ctx, name, c.cfg.BatchSize, c.cfg.PollTimeout)
		if err != nil {
			return 0, fmt.Errorf("pull %s: %w", name, err)
		}
		if len(batch) > 0 {
			break
		}
	}

	for i, d := range batch {
		if ctx.Err() != nil {
			c.release(batch[i:])
			break
		}
		c.process(ctx, d)
	}
	return len(batch), nil
}

// release returns unprocessed deliveries to their lane without delay.
func (c *Consumer) release(rest []lane.Delivery) {
	ctx := context.Background()
	for _, d := range rest {
		if err := c.laneCall(ctx, func(ctx context.Context) error {
			return c.transport.ReturnWithDelay(ctx, d, 0)
		}); err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "cannot release delivery on shutdown",
				logger.Lane(d.Lane),
				logger.MessageID(d.ID),
				logger.Error(err),
			)
		}
	}
	if len(rest) > 0 {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "released unprocessed deliveries", slog.Int("count", len(rest)))
	}
}

// process handles one delivery to completion. It detaches from ctx's
// cancellation so a shutdown never interrupts a message half way.
func (c *Consumer) process(ctx context.Context, d lane.Delivery) {
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With(logger.Lane(d.Lane), logger.MessageID(d.ID))

	defer func() {
		if r := recover(); r != nil {
			log.LogAttrs(ctx, slog.LevelError, "panic while processing delivery, leaving it for redelivery",
				slog.Any("panic", r),
			)
			c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
		}
	}()

	msg, err := lane.DecodeMessage(d.Body)
	if err == nil && msg.Channel != c.channel {
		err = fmt.Errorf("%w: %s", ErrWrongChannel, msg.Channel)
	}
	if err != nil {
		c.poison(ctx, log, d, msg, err)
		return
	}
	log = log.With(logger.EventID(msg.EventID))

	a, ok := c.claim(ctx, log, d, msg)
	if !ok {
		return
	}

	start := c.now()
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	err = c.sender.Send(sendCtx, msg.Target, delivery.Render(msg))
	cancel()
	elapsed := c.now().Sub(start)
	c.metrics.SendDuration(string(c.channel), d.Lane, elapsed)

	if err != nil {
		c.fail(ctx, log, d, msg, a, err)
		return
	}
	c.succeed(ctx, log, d, msg, elapsed)
}

// claim moves the record to PROCESSING once its scheduled retry is due. It
// reports false when the delivery must not be sent now, after settling the
// lane message as needed.
func (c *Consumer) claim(ctx context.Context, log *slog.Logger, d lane.Delivery, msg lane.Message) (status.Attempt, bool) {
	a, applied, err := c.tracker.Transition(ctx, msg.EventID, c.channel,
		[]status.Status{status.Pending}, status.Processing, status.IfDue(c.now()))
	if err == nil && !applied && c.reclaimable(a) {
		log.LogAttrs(ctx, slog.LevelWarn, "reclaiming delivery", logger.Status(a.Status), logger.Attempt(a.AttemptCount))
		// The version pins the record this decision was taken on: if another
		// consumer reclaimed it meanwhile, the update does not apply.
		_, ok, rerr := c.tracker.Transition(ctx, msg.EventID, c.channel,
			[]status.Status{a.Status}, status.Pending,
			status.IfVersion(a.Version),
			status.WithError(fmt.Errorf("reclaimed from %s", a.Status)))
		if rerr == nil && ok {
			a, applied, err = c.tracker.Transition(ctx, msg.EventID, c.channel,
				[]status.Status{status.Pending}, status.Processing, status.IfDue(c.now()))
		}
	}

	switch {
	case errors.Is(err, status.ErrNotFound):
		c.poison(ctx, log, d, msg, ErrNoRecord)
		return a, false
	case err != nil:
		// Redelivery after the visibility timeout retries the claim.
		log.LogAttrs(ctx, slog.LevelError, "cannot claim delivery, leaving it for redelivery", logger.Error(err))
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
		return a, false
	case applied:
		return a, true
	}

	switch a.Status {
	case status.Success:
		log.LogAttrs(ctx, slog.LevelInfo, "duplicate delivery of a sent message, acknowledging")
		c.ack(ctx, log, d)
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeDuplicate)
	case status.DeadLettered:
		reason := a.LastError
		if reason == "" {
			reason = "already dead-lettered"
		}
		c.deadLetter(ctx, log, d, reason)
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeDuplicate)
	case status.Pending:
		// An early copy of a message waiting for its retry.
		wait := a.RetryIn(c.now())
		log.LogAttrs(ctx, slog.LevelDebug, "delivery not due yet, returning it", logger.Delay(wait))
		if err := c.laneCall(ctx, func(ctx context.Context) error {
			return c.transport.ReturnWithDelay(ctx, d, wait)
		}); err != nil {
			log.LogAttrs(ctx, slog.LevelWarn, "cannot return early delivery, it reappears after the visibility timeout", logger.Error(err))
		}
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
	default:
		log.LogAttrs(ctx, slog.LevelDebug, "delivery held elsewhere, leaving it", logger.Status(a.Status))
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
	}
	return a, false
}

// reclaimable reports whether a record that failed the claim may be moved
// back to PENDING: a FAILED record whose message did reach the lane, or a
// PROCESSING record older than StaleAfter.
func (c *Consumer) reclaimable(a status.Attempt) bool {
	switch a.Status {
	case status.Failed:
		return true
	case status.Processing:
		return c.cfg.StaleAfter > 0 && c.now().Sub(a.UpdatedAt) >= c.cfg.StaleAfter
	}
	return false
}

func (c *Consumer) succeed(ctx context.Context, log *slog.Logger, d lane.Delivery, msg lane.Message, elapsed time.Duration) {
	_, applied, err := c.tracker.Transition(ctx, msg.EventID, c.channel,
		[]status.Status{status.Processing}, status.Success)
	switch {
	case err != nil:
		// Never resend a delivered message: ack anyway and flag the record.
		log.LogAttrs(ctx, slog.LevelError, "delivered but SUCCESS not persisted",
			logger.Alert(),
			logger.Error(err),
		)
	case !applied:
		log.LogAttrs(ctx, slog.LevelWarn, "delivered but record changed concurrently")
	}

	c.ack(ctx, log, d)
	c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSuccess)
	log.LogAttrs(ctx, slog.LevelInfo, "notification delivered", logger.Duration(elapsed))
}

func (c *Consumer) fail(ctx context.Context, log *slog.Logger, d lane.Delivery, msg lane.Message, a status.Attempt, sendErr error) {
	attempts := a.AttemptCount + 1
	permanent := delivery.IsPermanent(sendErr)

	if permanent || attempts >= c.cfg.MaxAttempts {
		stored, _, err := c.tracker.Transition(ctx, msg.EventID, c.channel,
			[]status.Status{status.Processing}, status.DeadLettered,
			status.WithAttemptCount(attempts), status.WithError(sendErr))
		if err != nil {
			log.LogAttrs(ctx, slog.LevelError, "cannot record dead letter, leaving it for redelivery",
				logger.Attempt(attempts),
				logger.Errors(sendErr, err),
			)
			c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
			return
		}

		c.deadLetter(ctx, log, d, sendErr.Error())
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeDeadLettered)
		log.LogAttrs(ctx, slog.LevelError, "delivery dead-lettered",
			logger.Alert(),
			logger.Attempt(attempts),
			slog.Bool("permanent", permanent),
			logger.Error(sendErr),
		)
		if c.onDeadLetter != nil {
			c.onDeadLetter(ctx, msg, stored, sendErr.Error())
		}
		return
	}

	delay := c.backoff.Delay(attempts)
	_, _, err := c.tracker.Transition(ctx, msg.EventID, c.channel,
		[]status.Status{status.Processing}, status.Pending,
		status.WithAttemptCount(attempts), status.WithError(sendErr),
		status.WithNextRetryAt(c.now().Add(delay)))
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "cannot record retry, leaving it for redelivery",
			logger.Attempt(attempts),
			logger.Errors(sendErr, err),
		)
		c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeSkipped)
		return
	}

	if err := c.laneCall(ctx, func(ctx context.Context) error {
		return c.transport.ReturnWithDelay(ctx, d, delay)
	}); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "cannot return delivery, it reappears after the visibility timeout", logger.Error(err))
	}
	c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeRetry)
	log.LogAttrs(ctx, slog.LevelWarn, "delivery failed, retry scheduled",
		logger.Attempt(attempts),
		logger.Delay(delay),
		logger.Error(sendErr),
	)
}

// poison dead-letters a message that can never be processed.
func (c *Consumer) poison(ctx context.Context, log *slog.Logger, d lane.Delivery, msg lane.Message, cause error) {
	c.deadLetter(ctx, log, d, cause.Error())
	c.metrics.Delivery(string(c.channel), d.Lane, metrics.OutcomeDeadLettered)
	log.LogAttrs(ctx, slog.LevelError, "unprocessable lane message dead-lettered",
		logger.Alert(),
		logger.Error(cause),
	)
	if c.onDeadLetter != nil {
		c.onDeadLetter(ctx, msg, status.Attempt{EventID: msg.EventID, Channel: c.channel, Lane: d.Lane, LastError: cause.Error()}, cause.Error())
	}
}

func (c *Consumer) ack(ctx context.Context, log *slog.Logger, d lane.Delivery) {
	if err := c.laneCall(ctx, func(ctx context.Context) error {
		return c.transport.Ack(ctx, d)
	}); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "ack failed, duplicate will be acknowledged on redelivery", logger.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, log *slog.Logger, d lane.Delivery, reason string) {
	if err := c.laneCall(ctx, func(ctx context.Context) error {
		return c.transport.DeadLetter(ctx, d, reason)
	}); err != nil {
		log.LogAttrs(ctx, slog.LevelError, "dead-letter move failed, will retry on redelivery", logger.Error(err))
	}
}

func (c *Consumer) laneCall(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LaneTimeout)
	defer cancel()
	return fn(ctx)
}
