// Package classifier decides whether an event is critical.
//
// The decision is a pure function of the event: an explicit payload priority
// wins, otherwise a per-type default map applies. The map ships with sane
// defaults (MESSAGE, MENTION and COMMENT are critical) and can be overridden
// through RELAY_CRITICALITY_MAP or a YAML file named by RELAY_CRITICALITY_FILE.
package classifier
