// Package dispatcher publishes routed notifications onto the six channel
// lanes ({email,sms,push} x {critical,non_critical}).
//
// Dispatch is synchronous and at-least-once from the caller's point of
// view: it returns only after the lane transport accepted the message, or
// with ErrDispatchFailed once the bounded retries are spent. The router then
// marks the delivery FAILED.
package dispatcher
