// Package status records the delivery state of every (event, channel) pair.
//
// States and legal edges:
//
//	PENDING    -> PROCESSING | FAILED
//	PROCESSING -> SUCCESS | PENDING (retry) | DEAD_LETTERED
//	FAILED     -> PENDING (re-dispatch)
//
// SUCCESS and DEAD_LETTERED are terminal. Every write is conditional on the
// current status (compare-and-set), which is what makes duplicate lane
// deliveries harmless: only one consumer can move a record out of PENDING.
//
// Tracker is the only writer. Stores: MemoryStore, PostgresStore and
// DynamoStore.
package status
