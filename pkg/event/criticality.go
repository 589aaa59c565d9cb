package event

import (
	"fmt"
	"strings"
)

// Criticality decides which lane an event travels on.
type Criticality string

const (
	Critical    Criticality = "critical"
	NonCritical Criticality = "non_critical"
)

// Criticalities in drain order: critical lanes are always pulled first.
var Criticalities = []Criticality{Critical, NonCritical}

// ParseCriticality accepts "critical", "non_critical" and "non-critical".
func ParseCriticality(s string) (Criticality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Critical):
		return Critical, nil
	case string(NonCritical), "non-critical", "noncritical":
		return NonCritical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCriticality, s)
}

// Valid reports whether c is a known criticality.
func (c Criticality) Valid() bool {
	return c == Critical || c == NonCritical
}
