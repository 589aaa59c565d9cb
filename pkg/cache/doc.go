// Package cache provides a generic bounded LRU cache with per-entry expiry.
//
// The relay uses it to keep recently read preference profiles in memory so a
// burst of events for one user costs a single store lookup. Entries live for
// a fixed TTL, so preference changes become visible after at most one TTL.
//
//	c := cache.New[string, preferences.Preferences](10_000, time.Minute)
//	c.Put(userID, prefs)
//	prefs, ok := c.Get(userID)
package cache
