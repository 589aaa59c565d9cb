package classifier

import "errors"

// ErrInvalidMap is returned when a configured criticality map has unknown
// event types or criticality values.
var ErrInvalidMap = errors.New("invalid criticality map")
