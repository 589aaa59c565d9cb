// Package lane is the transport between the router and the channel
// consumers.
//
// A lane is a named queue of opaque bodies with at-least-once delivery and a
// visibility timeout: a pulled message stays hidden until it is acked,
// returned with a delay, dead-lettered, or its visibility expires. Six lanes
// carry notifications ("{channel}_{criticality}"), and one more carries
// inbound events for the router.
//
// Implementations:
//
//   - MemoryTransport: in-process, for tests and single-binary runs.
//   - RedisTransport: sorted sets scored by visible-at time, with Lua
//     scripts guarding each receipt.
//   - SQSTransport: one SQS queue per lane; delays via ChangeMessageVisibility.
//
// Message is the JSON body the dispatcher publishes to a channel lane.
package lane
