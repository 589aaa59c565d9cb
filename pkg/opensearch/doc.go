// Package opensearch connects to the OpenSearch cluster that stores the
// dead-letter archive.
//
//	cfg, _ := config.Load[opensearch.Config]()
//	client, err := opensearch.New(ctx, cfg)
//	if errors.Is(err, opensearch.ErrConnectionFailed) {
//		// bad configuration
//	}
//
// Healthcheck returns a probe for readiness endpoints.
package opensearch
