// Package ingest moves inbound user-activity events from the events lane into
// the router.
//
// A Listener pulls events in batches, routes each one and acknowledges it
// once every channel is settled. Events that fail to route are returned to
// the lane after RetryDelay and dead-lettered after MaxReceives receives;
// malformed events are dead-lettered at once.
//
// Producers put events on the lane with a Publisher:
//
//	p := ingest.NewPublisher(transport, cfg.Lane)
//	err := p.Submit(ctx, evt)
package ingest
