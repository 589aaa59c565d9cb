// Package consumer drains the lanes of one delivery channel.
//
// A Consumer pulls a batch from the channel's critical lane and falls back to
// the non-critical lane only when the critical pull is empty, so critical
// traffic is never starved. Each message is claimed through the status
// tracker (PENDING to PROCESSING) before it is sent; a claim that does not
// apply means another instance owns the message or it was already delivered,
// and the delivery is acknowledged or left alone accordingly.
//
// Failed sends are retried by returning the message to its lane with an
// exponential delay. After MaxAttempts attempts, or on a permanent provider
// error, the record becomes DEAD_LETTERED and the message moves to the lane's
// dead-letter destination.
//
//	c, err := consumer.New(event.ChannelSMS, transport, tracker, sender,
//		consumer.WithConfig(cfg),
//		consumer.WithLogger(log),
//	)
//	g.Go(c.Run(ctx))
//
// Cancelling the context passed to Run stops the loop after the message in
// flight completes; the rest of the batch is returned to its lane at once.
package consumer
