package classifier

// Config selects the criticality map sources.
type Config struct {
	// Overrides is an inline map, e.g. "MESSAGE:critical,LIKE:non_critical".
	Overrides map[string]string `env:"RELAY_CRITICALITY_MAP" envSeparator:"," envKeyValSeparator:":"`
	// File points at a YAML document mapping event types to criticalities.
	File string `env:"RELAY_CRITICALITY_FILE"`
}
