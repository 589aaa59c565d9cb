package opensearch

// Config holds OpenSearch connection settings for the dead-letter archive.
// Credentials are optional so a local single-node cluster works unchanged.
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES" envDefault:"http://localhost:9200" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
}
