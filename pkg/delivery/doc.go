// Package delivery defines the contract between the channel consumer and the
// concrete notification transports (email, SMS, push).
//
// A Sender returns nil on acceptance, an error wrapping ErrPermanent when the
// provider rejected the recipient or content for good, and any other error
// for failures worth retrying. The consumer dead-letters permanent failures
// immediately and retries the rest with backoff.
//
// Wrap decorates a transport with a gobreaker circuit breaker and an
// x/time/rate limiter. An open circuit is reported as ErrCircuitOpen, a
// transient error, so affected messages go back to their lane.
package delivery
