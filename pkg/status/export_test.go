package status

import "time"

// SetDynamoClock pins the store clock in tests.
func (s *DynamoStore) SetDynamoClock(now func() time.Time) { s.now = now }
