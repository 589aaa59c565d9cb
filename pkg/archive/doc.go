// Package archive keeps a searchable copy of every dead-lettered delivery in
// OpenSearch, one document per (event, channel).
//
//	a, _ := archive.New(client, archive.WithConfig(cfg))
//	c, _ := consumer.New(ch, transport, tracker, sender,
//		consumer.WithDeadLetterHook(a.Hook()),
//	)
//
// Find lists the archived records of an event for the status API.
package archive
