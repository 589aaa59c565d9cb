// Package backoff computes redelivery delays for failed notifications.
//
// The default strategy is exponential: with a 1s base the waits after the
// first four failures are 1s, 2s, 4s and 8s. A cap bounds long sequences and
// optional jitter desynchronizes consumers retrying the same outage.
package backoff
