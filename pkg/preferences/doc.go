// Package preferences models per-user notification preferences and provides
// the stores the router reads them from.
//
// A user without a saved profile gets Default: every channel enabled, no
// quiet hours, no priority-only filter. Quiet hours are evaluated in the
// user's timezone with minute resolution and may wrap midnight.
//
// Stores: MemoryStore for tests and local runs, MongoStore for production,
// and CachedStore, a bounded TTL cache in front of either.
package preferences
