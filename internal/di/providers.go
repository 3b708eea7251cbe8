package di

import (
	"context"
	"fmt"
	"time"

	domrepo "SignalFuse/internal/domain/repository"
	"SignalFuse/internal/handler/api"
	mid "SignalFuse/internal/middleware"
	internalrepo "SignalFuse/internal/repository"
	"SignalFuse/internal/service/finnhub"
	"SignalFuse/internal/service/ratelimit"
	"SignalFuse/internal/services/adapters"
	"SignalFuse/internal/services/features"
	"SignalFuse/internal/services/fusion"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/cache"
	pkgch "SignalFuse/pkg/clickhouse"
	"SignalFuse/pkg/config"
	pkgkafka "SignalFuse/pkg/kafka"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/metrics"
	"SignalFuse/pkg/server"
)

// ProvideLogger creates the application logger. Error entries are shipped to
// the logs topic when shipping is enabled and Kafka is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	out := "stdout"
	if cfg.Logging.File != "" {
		out = cfg.Logging.File
	}
	l, err := logger.New(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     out,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Logging.Ship && producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Source:         "signalfuse",
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideRedisCache connects to Redis, or returns nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideSnapshotCache layers an in-process cache over Redis when Redis is
// configured and falls back to memory only.
func ProvideSnapshotCache(cfg *config.Config, rc *cache.RedisCache) *internalrepo.SnapshotCache {
	var svc cache.Service
	if rc != nil {
		svc = cache.NewLayeredCache(rc,
			cache.WithLayeredMemorySize(1024),
			cache.WithLayeredMemoryTTL(cfg.Redis.SnapshotTTL),
		)
	} else {
		svc = cache.NewMemoryCache(cache.WithMemoryMaxSize(10000))
	}
	return internalrepo.NewSnapshotCache(svc, cfg.Redis.SnapshotTTL, 24*time.Hour)
}

// ProvidePredictionStore creates the ClickHouse store and its schema.
func ProvidePredictionStore(ch *pkgch.Client, log *logger.Logger) (domrepo.PredictionStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHPredictionStore(ch)
	store.SetLogger(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvidePredictionPublisher publishes predictions to Kafka when enabled.
func ProvidePredictionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.PredictionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.PredictionsTopic)
}

// ProvideEngineConfig maps the engine section of the config onto the fusion constants.
func ProvideEngineConfig(cfg *config.Config) fusion.Config {
	e := cfg.Engine
	fc := fusion.DefaultConfig()
	fc.ConfidenceCap = e.ConfidenceCap
	fc.CalibrationGate = e.CalibrationGate
	fc.HistorySize = e.HistorySize
	fc.CorrelationWindow = e.CorrelationWindow
	fc.DefaultHorizon = e.DefaultHorizon
	fc.Convergence.MinimumAlignment = e.MinimumAlignment
	fc.Convergence.ImprobabilityThreshold = e.ImprobabilityThreshold
	fc.Convergence.MomentumCutoff = e.MomentumCutoff
	fc.Convergence.Retention = e.Retention
	fc.Phase.SyncTolerance = e.PhaseTolerance
	return fc
}

// ProvideEngine builds the fusion engine with its adapters and event sink.
func ProvideEngine(cfg *config.Config, fc fusion.Config, m domrepo.Metrics, log *logger.Logger) *fusion.Engine {
	return fusion.NewEngine(
		fusion.WithConfig(fc),
		fusion.WithAdapters(adapters.FromConfig(cfg, log)...),
		fusion.WithEventSink(usecase.NewEventRecorder(m, log)),
	)
}

func ProvideEngineRunner(engine *fusion.Engine, cfg *config.Config, log *logger.Logger) *usecase.EngineRunner {
	return usecase.NewEngineRunner(engine,
		usecase.WithMailboxSize(cfg.Engine.MailboxSize),
		usecase.WithCommandTimeout(cfg.Engine.CommandTimeout),
		usecase.WithRunnerLogger(log),
	)
}

func ProvidePredictionService(
	runner *usecase.EngineRunner,
	store domrepo.PredictionStore,
	pub domrepo.PredictionPublisher,
	snapshots *internalrepo.SnapshotCache,
	m domrepo.Metrics,
	log *logger.Logger,
) *usecase.PredictionService {
	opts := []usecase.PredictionOption{
		usecase.WithSnapshotCache(snapshots),
		usecase.WithServiceMetrics(m),
		usecase.WithServiceLogger(log),
	}
	if store != nil {
		opts = append(opts, usecase.WithPredictionStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithPredictionPublisher(pub))
	}
	return usecase.NewPredictionService(runner, opts...)
}

func ProvideFeatureWindow(cfg *config.Config) *features.Window {
	return features.NewWindow(cfg.Finnhub.Window)
}

func ProvideTradeProcessor(
	window *features.Window,
	svc *usecase.PredictionService,
	m domrepo.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.TradeProcessor {
	return usecase.NewTradeProcessor(window, svc, m, cfg.Engine.PredictEvery, log)
}

// ProvideLimiter creates the token bucket limiter shared by the API and the trade pipeline.
func ProvideLimiter() *ratelimit.Limiter {
	return ratelimit.New()
}

// ProvideTradeCollector wires the Finnhub stream through the realtime
// pipeline, or returns nil when the live feed is disabled.
func ProvideTradeCollector(
	cfg *config.Config,
	processor *usecase.TradeProcessor,
	m domrepo.Metrics,
	limiter *ratelimit.Limiter,
	log *logger.Logger,
) *usecase.TradeCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		finnhub.WithLogger(log),
	)
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(cfg.Finnhub.MaxTradesPerSec),
		mid.WithBufferSize(cfg.Finnhub.BufferSize),
		mid.WithLimiter(limiter),
		mid.WithPipelineLogger(log),
	)
	return usecase.NewTradeCollector(stream, processor, m, pipe, log)
}

// ProvideKafkaConsumer creates a Kafka consumer with logging and tracing
// hooks, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.NewTracingHook(),
		pkgkafka.NewLoggingHook(log, 500*time.Millisecond),
	))
	return consumer, nil
}

// ProvideKafkaHandlers returns the handlers for the ticks and outcomes topics.
func ProvideKafkaHandlers(
	cfg *config.Config,
	proc *usecase.TradeProcessor,
	svc *usecase.PredictionService,
	m domrepo.Metrics,
	log *logger.Logger,
) []pkgkafka.MessageHandler {
	return []pkgkafka.MessageHandler{
		usecase.NewKafkaTicksHandler(cfg.Kafka.TicksTopic, proc, m),
		usecase.NewKafkaOutcomesHandler(cfg.Kafka.OutcomesTopic, svc, m, log),
	}
}

// ProvideHTTPHandler builds the API handler with dependency health checks.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *logger.Logger,
	svc *usecase.PredictionService,
	proc *usecase.TradeProcessor,
	limiter *ratelimit.Limiter,
	store domrepo.PredictionStore,
	rc *cache.RedisCache,
	collector *usecase.TradeCollector,
) *api.FusionEchoHandler {
	opts := []api.HandlerOption{
		api.WithRateLimit(limiter, api.RateLimit{
			Capacity:     cfg.Server.RateLimit.Capacity,
			RefillPerSec: cfg.Server.RateLimit.RefillPerSec,
		}),
	}
	if store != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", store.Health))
	}
	if rc != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	if collector != nil {
		opts = append(opts, api.WithHealthCheck("finnhub", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("stream disconnected")
			}
			return nil
		}))
	}
	return api.NewFusionEchoHandler(log, svc, proc, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	runner *usecase.EngineRunner,
	handler *api.FusionEchoHandler,
	collector *usecase.TradeCollector,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	store domrepo.PredictionStore,
	producer *pkgkafka.Producer,
	rc *cache.RedisCache,
) *server.App {
	app := server.New(cfg, log, runner, handler,
		server.WithCollector(collector),
		server.WithConsumer(consumer, handlers...),
	)
	if store != nil {
		app.AddCloser("clickhouse", store)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer)
	}
	if rc != nil {
		app.AddCloser("redis", rc)
	}
	return app
}
