package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/notifyrelay/pkg/archive"
	"github.com/dmitrymomot/notifyrelay/pkg/awsconfig"
	"github.com/dmitrymomot/notifyrelay/pkg/classifier"
	"github.com/dmitrymomot/notifyrelay/pkg/consumer"
	"github.com/dmitrymomot/notifyrelay/pkg/dispatcher"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/httpserver"
	"github.com/dmitrymomot/notifyrelay/pkg/ingest"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
	"github.com/dmitrymomot/notifyrelay/pkg/opensearch"
	"github.com/dmitrymomot/notifyrelay/pkg/router"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
	"github.com/dmitrymomot/notifyrelay/pkg/statusapi"
)

// app is one relay process: the loops it runs and the connections it owns.
type app struct {
	cfg      Config
	log      *slog.Logger
	channels []event.Channel

	metrics   *metrics.Metrics
	aws       *awsconfig.Clients
	transport lane.Transport
	tracker   *status.Tracker
	archive   *archive.Archive

	listener  *ingest.Listener
	consumers []*consumer.Consumer
	server    *httpserver.Server
	handler   http.Handler

	checks  []httpserver.Check
	closers []func() error
}

// newApp connects every backend cfg selects and builds the loops of the
// configured role. On error everything opened so far is closed.
func newApp(ctx context.Context, cfg Config, log *slog.Logger) (_ *app, err error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	channels, err := cfg.channels()
	if err != nil {
		return nil, err
	}

	var mopts []metrics.Option
	if cfg.RuntimeMetrics {
		mopts = append(mopts, metrics.WithRuntimeMetrics())
	}
	a := &app{
		cfg:      cfg,
		log:      log,
		channels: channels,
		metrics:  metrics.New(mopts...),
	}
	defer func() {
		if err != nil {
			_ = a.close()
		}
	}()

	if cfg.needsAWS(channels) {
		awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, fmt.Errorf("aws: %w", err)
		}
		clients := awsconfig.NewClients(awsCfg, cfg.AWS)
		a.aws = &clients
	}

	if a.transport, err = a.openLanes(ctx); err != nil {
		return nil, err
	}
	store, err := a.openStatusStore(ctx)
	if err != nil {
		return nil, err
	}
	a.tracker = status.NewTracker(store,
		status.WithConfig(cfg.Status),
		status.WithLogger(log.With(logger.Component("status"))),
	)

	if cfg.ArchiveEnabled {
		if err := a.openArchive(ctx); err != nil {
			return nil, err
		}
	}

	if cfg.runsRouter() {
		if err := a.buildRouter(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.runsConsumer() {
		if err := a.buildConsumers(); err != nil {
			return nil, err
		}
	}

	apiOpts := []statusapi.Option{
		statusapi.WithLogger(log.With(logger.Component("statusapi"))),
		statusapi.WithMetrics(a.metrics),
		statusapi.WithSubmitter(ingest.NewPublisher(a.transport, cfg.Ingest.Lane)),
		statusapi.WithReadinessChecks(cfg.ReadyTimeout, a.checks...),
	}
	if a.archive != nil {
		apiOpts = append(apiOpts, statusapi.WithDeadLetters(a.archive))
	} else if src, ok := a.transport.(archive.DeadLetterSource); ok {
		// Without an archive the redis lanes still keep their dead letters.
		apiOpts = append(apiOpts, statusapi.WithDeadLetters(archive.NewLaneFinder(src, 0)))
	}
	if a.handler, err = statusapi.New(a.tracker, apiOpts...); err != nil {
		return nil, err
	}
	a.server = httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log.With(logger.Component("http"))))

	return a, nil
}

func (a *app) buildRouter(ctx context.Context) error {
	prefs, err := a.openPreferences(ctx)
	if err != nil {
		return err
	}
	m, err := classifier.LoadMap(a.cfg.Classifier)
	if err != nil {
		return err
	}

	d, err := dispatcher.New(a.transport,
		dispatcher.WithConfig(a.cfg.Dispatcher),
		dispatcher.WithLogger(a.log.With(logger.Component("dispatcher"))),
		dispatcher.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	r, err := router.New(
		classifier.New(m, classifier.WithLogger(a.log.With(logger.Component("classifier")))),
		prefs, a.tracker, d,
		router.WithConfig(a.cfg.Router),
		router.WithLogger(a.log.With(logger.Component("router"))),
		router.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.listener, err = ingest.NewListener(a.transport, r,
		ingest.WithConfig(a.cfg.Ingest),
		ingest.WithLogger(a.log.With(logger.Component("ingest"))),
	)
	return err
}

func (a *app) buildConsumers() error {
	for _, ch := range a.channels {
		sender, err := a.sender(ch)
		if err != nil {
			return fmt.Errorf("%s sender: %w", ch, err)
		}
		opts := []consumer.Option{
			consumer.WithConfig(a.cfg.Consumer),
			consumer.WithLogger(a.log.With(logger.Component("consumer"))),
			consumer.WithMetrics(a.metrics),
		}
		if a.archive != nil {
			opts = append(opts, consumer.WithDeadLetterHook(a.archive.Hook()))
		}
		for range max(a.cfg.Consumer.Instances, 1) {
			c, err := consumer.New(ch, a.transport, a.tracker, sender, opts...)
			if err != nil {
				return err
			}
			a.consumers = append(a.consumers, c)
		}
	}
	return nil
}

func (a *app) openArchive(ctx context.Context) error {
	client, err := opensearch.New(ctx, a.cfg.OpenSearch)
	if err != nil {
		return err
	}
	a.archive, err = archive.New(client,
		archive.WithConfig(a.cfg.Archive),
		archive.WithLogger(a.log.With(logger.Component("archive"))),
	)
	if err != nil {
		return err
	}
	a.checks = append(a.checks, httpserver.Check{Name: "opensearch", Fn: opensearch.Healthcheck(client)})
	return nil
}

// run blocks until ctx is cancelled or a loop fails. Every loop stops
// when any of them returns an error.
func (a *app) run(ctx context.Context) error {
	a.log.LogAttrs(ctx, slog.LevelInfo, "relay starting",
		slog.String("role", a.cfg.Role),
		slog.Any("channels", a.channels),
		slog.String("lanes", a.cfg.LaneBackend),
		slog.String("status", a.cfg.StatusBackend),
		slog.String("preferences", a.cfg.PreferencesBackend),
		slog.Int("consumers", len(a.consumers)),
	)

	g, ctx := errgroup.WithContext(ctx)
	if a.listener != nil {
		g.Go(a.listener.Run(ctx))
	}
	for _, c := range a.consumers {
		g.Go(c.Run(ctx))
	}
	g.Go(func() error { return a.server.Run(ctx, a.handler) })

	err := g.Wait()
	a.log.LogAttrs(context.WithoutCancel(ctx), slog.LevelInfo, "relay stopped")
	return err
}

// close releases connections in reverse opening order.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
