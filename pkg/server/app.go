package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/revolis/allpremarkets/internal/middleware"
	"github.com/revolis/allpremarkets/internal/service/telegram"
	"github.com/revolis/allpremarkets/internal/usecase"
	"github.com/revolis/allpremarkets/pkg/config"
	xhttp "github.com/revolis/allpremarkets/pkg/http"
	pkgkafka "github.com/revolis/allpremarkets/pkg/kafka"
	applogger "github.com/revolis/allpremarkets/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	engine     *usecase.SpreadEngine
	pipeline   *middleware.AlertPipeline
	httpServer *xhttp.Server

	consumer *pkgkafka.Consumer
	ingest   pkgkafka.MessageHandler
	health   *usecase.VenueHealthReporter
	notifier *telegram.Notifier
	closers  []io.Closer

	wg sync.WaitGroup
}

type Option func(*App)

// WithConsumer feeds the engine from Kafka through h.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.ingest = h
	}
}

func WithHealthReporter(r *usecase.VenueHealthReporter) Option {
	return func(a *App) { a.health = r }
}

// WithNotifier runs the Telegram command loop alongside the engine.
func WithNotifier(n *telegram.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithCloser registers a shared client closed last on shutdown.
func WithCloser(c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, c)
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	engine *usecase.SpreadEngine,
	pipeline *middleware.AlertPipeline,
	httpServer *xhttp.Server,
	opts ...Option,
) *App {
	a := &App{
		cfg:        cfg,
		log:        log,
		engine:     engine,
		pipeline:   pipeline,
		httpServer: httpServer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done or
// the HTTP server fails.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.pipeline.Start()
	a.log.Info("alert pipeline started", applogger.Strings("sinks", a.pipeline.Sinks()))

	if a.consumer != nil && a.ingest != nil {
		a.consumer.RegisterHandler(a.ingest)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return errors.Join(err, a.shutdown())
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.ingest.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	if a.health != nil {
		if err := a.health.Start(a.cfg.Engine.HealthSchedule); err != nil {
			a.log.Error("venue health start error", applogger.Error(err))
			return errors.Join(err, a.shutdown())
		}
	}

	if a.notifier != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.notifier.Run(runCtx); err != nil {
				a.log.Error("telegram loop error", applogger.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server failed", applogger.Error(runErr))
	}
	cancel()
	return errors.Join(runErr, a.shutdown())
}

// shutdown stops ingestion first so no new alerts are produced, then drains
// delivery and closes shared clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.log.Info("shutting down...")
	var errs []error

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if err := a.engine.Stop(ctx); err != nil {
		a.log.Warn("spread engine stop error", applogger.Error(err))
		errs = append(errs, err)
	}

	if err := a.pipeline.Stop(ctx); err != nil {
		a.log.Warn("alert pipeline drain incomplete", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.health != nil {
		a.health.Stop()
	}

	a.wg.Wait()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.log.Info("shutdown complete", applogger.Duration("budget_ms", a.cfg.Server.ShutdownTimeout))
	return errors.Join(errs...)
}
