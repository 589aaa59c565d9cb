// Package httpserver runs the relay's operational HTTP endpoint.
//
// Server ties an http.Server to a context: cancelling the context drains
// in-flight requests within the shutdown timeout. HealthCheckHandler serves
// liveness and readiness probes from named dependency checks.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, handler) })
package httpserver
