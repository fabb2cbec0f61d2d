package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/revolis/allpremarkets/internal/domain/models"
	"github.com/revolis/allpremarkets/internal/domain/repository"
	"github.com/revolis/allpremarkets/internal/handler/api"
	mid "github.com/revolis/allpremarkets/internal/middleware"
	"github.com/revolis/allpremarkets/internal/normalizer"
	internalrepo "github.com/revolis/allpremarkets/internal/repository"
	"github.com/revolis/allpremarkets/internal/service/ratelimit"
	"github.com/revolis/allpremarkets/internal/service/telegram"
	"github.com/revolis/allpremarkets/internal/store"
	"github.com/revolis/allpremarkets/internal/usecase"
	"github.com/revolis/allpremarkets/pkg/cache"
	pkgch "github.com/revolis/allpremarkets/pkg/clickhouse"
	"github.com/revolis/allpremarkets/pkg/config"
	xhttp "github.com/revolis/allpremarkets/pkg/http"
	pkgkafka "github.com/revolis/allpremarkets/pkg/kafka"
	"github.com/revolis/allpremarkets/pkg/logger"
	"github.com/revolis/allpremarkets/pkg/metrics"
	"github.com/revolis/allpremarkets/pkg/server"
)

// ConfigPath is the file rule reloads re-read.
type ConfigPath string

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Service:    "allpremarkets",
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegisterer returns the registry served on the metrics path.
func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.NewWithRegistry(reg)
}

// ProvideSymbolMap builds the venue spelling table from config.
func ProvideSymbolMap(cfg *config.Config) (*normalizer.SymbolMap, error) {
	table, err := cfg.SymbolTable()
	if err != nil {
		return nil, err
	}
	return normalizer.NewSymbolMap(table), nil
}

func ProvideNormalizer(symbols *normalizer.SymbolMap, m repository.Metrics, l *logger.Logger) *normalizer.Normalizer {
	return normalizer.New(symbols,
		normalizer.WithMetrics(m),
		normalizer.WithLogger(l.With(logger.String("component", "normalizer"))),
	)
}

func ProvideVenueStore() *store.VenueStore {
	return store.New()
}

func ProvideRules(cfg *config.Config) ([]models.SpreadRule, error) {
	return cfg.SpreadRules()
}

// ProvideRuleLoader re-reads path for POST /api/rules/reload.
func ProvideRuleLoader(path ConfigPath) api.RuleLoader {
	return func() ([]models.SpreadRule, error) {
		cfg, err := config.LoadWithEnv(string(path))
		if err != nil {
			return nil, err
		}
		return cfg.SpreadRules()
	}
}

// ProvideCache connects to Redis. It returns nil when Redis is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideClickHouseSink opens ClickHouse and creates the alert table. It
// returns nil when ClickHouse is disabled.
func ProvideClickHouseSink(cfg *config.Config) (*internalrepo.ClickHouseAlertSink, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddress(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	sink, err := internalrepo.NewClickHouseAlertSink(client.DB(), cfg.ClickHouse.Table)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, sink.Schema()); err != nil {
		_ = client.Close() // DI layer has no logger; propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return sink, nil
}

// ProvideKafkaAlertSink creates the alert publisher. It returns nil when
// alert publishing is disabled.
func ProvideKafkaAlertSink(cfg *config.Config, reg prometheus.Registerer) (*internalrepo.KafkaAlertSink, error) {
	if !cfg.Kafka.Alerts.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return internalrepo.NewKafkaAlertSink(producer, cfg.Kafka.Alerts.Topic), nil
}

func ProvideStreamHub(l *logger.Logger) *api.StreamHub {
	return api.NewStreamHub(l.With(logger.String("component", "stream")))
}

// ProvideTelegramNotifier creates the chat notifier and restores persisted
// mutes. It returns nil when Telegram is disabled.
func ProvideTelegramNotifier(cfg *config.Config, c cache.Service, l *logger.Logger) (*telegram.Notifier, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	links := make(map[models.Venue]string, len(telegram.DefaultVenueLinks))
	for v, u := range telegram.DefaultVenueLinks {
		links[v] = u
	}
	for name, u := range cfg.Telegram.VenueLinks {
		v, err := models.ParseVenue(name)
		if err != nil {
			return nil, fmt.Errorf("telegram.venue_links: %w", err)
		}
		links[v] = u
	}

	var bot telegram.BotAPI
	if !cfg.Telegram.DryRun {
		bot = telegram.NewClient(cfg.Telegram.APIURL, cfg.Telegram.BotToken, nil)
	}

	opts := []telegram.Option{
		telegram.WithLogger(l.With(logger.String("component", "telegram"))),
		telegram.WithLimiter(ratelimit.PerMinute(cfg.Telegram.RatePerMinute)),
		telegram.WithCache(muteStore(c)),
	}
	n := telegram.NewNotifier(bot, telegram.Config{
		ChatID:        cfg.Telegram.ChatID,
		AlertPrefix:   cfg.Telegram.AlertPrefix,
		DryRun:        cfg.Telegram.DryRun,
		PollTimeout:   cfg.Telegram.PollTimeout,
		RatePerMinute: cfg.Telegram.RatePerMinute,
		StaleAfter:    cfg.Engine.HealthMaxAge,
		VenueLinks:    links,
	}, nil, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.LoadMutes(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// muteStore keeps mutes in Redis when it is enabled and in process memory
// otherwise.
func muteStore(c cache.Service) cache.Service {
	if c == nil {
		return cache.NewMemoryCache()
	}
	return c
}

// ProvideAlertSinks collects every enabled sink in delivery order.
func ProvideAlertSinks(
	cfg *config.Config,
	l *logger.Logger,
	c cache.Service,
	hub *api.StreamHub,
	ch *internalrepo.ClickHouseAlertSink,
	kafkaSink *internalrepo.KafkaAlertSink,
	notifier *telegram.Notifier,
) []repository.AlertSink {
	var sinks []repository.AlertSink
	if cfg.Dispatch.LogAlerts {
		sinks = append(sinks, internalrepo.NewLogAlertSink(l.With(logger.String("component", "alerts"))))
	}
	if notifier != nil {
		sinks = append(sinks, notifier)
	}
	sinks = append(sinks, hub)
	if c != nil {
		sinks = append(sinks, internalrepo.NewRedisAlertSink(c, cfg.Redis.Channel, cfg.Redis.RecentMax))
	}
	if ch != nil {
		sinks = append(sinks, ch)
	}
	if kafkaSink != nil {
		sinks = append(sinks, kafkaSink)
	}
	return sinks
}

func ProvideAlertPipeline(cfg *config.Config, sinks []repository.AlertSink, m repository.Metrics, l *logger.Logger) *mid.AlertPipeline {
	return mid.NewAlertPipeline(sinks,
		mid.WithWorkers(cfg.Dispatch.Workers),
		mid.WithBufferSize(cfg.Dispatch.BufferSize),
		mid.WithRetry(cfg.Dispatch.RetryMax, cfg.Dispatch.BackoffMin, cfg.Dispatch.BackoffMax),
		mid.WithDeliverTimeout(cfg.Dispatch.DeliverTimeout),
		mid.WithPipelineMetrics(m),
		mid.WithPipelineLogger(l.With(logger.String("component", "dispatch"))),
	)
}

// ProvideSpreadEngine creates the engine and attaches it to the notifier.
func ProvideSpreadEngine(
	cfg *config.Config,
	norm *normalizer.Normalizer,
	st *store.VenueStore,
	pipeline *mid.AlertPipeline,
	rules []models.SpreadRule,
	m repository.Metrics,
	l *logger.Logger,
	notifier *telegram.Notifier,
) *usecase.SpreadEngine {
	engine := usecase.NewSpreadEngine(norm, st, pipeline, rules,
		usecase.WithHistorySize(cfg.Engine.HistorySize),
		usecase.WithEngineMetrics(m),
		usecase.WithEngineLogger(l.With(logger.String("component", "engine"))),
	)
	if notifier != nil {
		notifier.SetEngine(engine)
	}
	return engine
}

func ProvideStatusHandler(l *logger.Logger, engine *usecase.SpreadEngine, loader api.RuleLoader, hub *api.StreamHub) *api.StatusHandler {
	return api.NewStatusHandler(l, engine, loader, hub)
}

func ProvideHTTPServer(cfg *config.Config, h *api.StatusHandler, reg prometheus.Registerer, l *logger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l.With(logger.String("component", "http"))),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg))
	} else {
		opts = append(opts, xhttp.WithMetrics("", nil))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideKafkaConsumer creates the ingest consumer. It returns nil when
// Kafka ingestion is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg prometheus.Registerer, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Ingest.Enabled {
		return nil, nil
	}
	in := cfg.Kafka.Ingest
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(in.GroupID),
		pkgkafka.WithConsumerWorkers(in.Workers),
		pkgkafka.WithConsumerBufferSize(in.BufferSize),
		pkgkafka.WithConsumerRetry(in.RetryMax, in.BackoffMin, in.BackoffMax),
		pkgkafka.WithConsumerDLQ(in.DLQTopic),
		pkgkafka.WithConsumerFetch(in.MinBytes, in.MaxBytes),
		pkgkafka.WithConsumerLogger(l.With(logger.String("component", "kafka"))),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideRawUpdateHandler(cfg *config.Config, engine *usecase.SpreadEngine, m repository.Metrics, l *logger.Logger) *usecase.RawUpdateHandler {
	return usecase.NewRawUpdateHandler(cfg.Kafka.Ingest.Topic, engine, m, l.With(logger.String("component", "ingest")))
}

func ProvideVenueHealthReporter(cfg *config.Config, engine *usecase.SpreadEngine, m repository.Metrics, l *logger.Logger) *usecase.VenueHealthReporter {
	return usecase.NewVenueHealthReporter(engine, m, l.With(logger.String("component", "health")), cfg.Engine.HealthMaxAge)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	engine *usecase.SpreadEngine,
	pipeline *mid.AlertPipeline,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	ingest *usecase.RawUpdateHandler,
	health *usecase.VenueHealthReporter,
	notifier *telegram.Notifier,
	c cache.Service,
) *server.App {
	opts := []server.Option{server.WithHealthReporter(health)}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, ingest))
	}
	if notifier != nil {
		opts = append(opts, server.WithNotifier(notifier))
	}
	if c != nil {
		opts = append(opts, server.WithCloser(c))
	}
	return server.New(cfg, l, engine, pipeline, httpServer, opts...)
}
