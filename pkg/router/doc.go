// Package router decides, per channel, whether and where an inbound event is
// delivered, and hands routed channels to the lane dispatcher.
//
// Decide is a pure function of the event criticality, one preference
// snapshot and the current time. Router.Route wraps it with the side
// effects: classification, preference lookup (falling back to defaults, and
// to degraded mode when the store is unavailable), the PENDING status write
// and the dispatch itself. The status record always exists before a message
// can reach a consumer.
package router
