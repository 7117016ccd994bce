package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"FinSight/internal/domain/models"
	"FinSight/internal/domain/repository"
	"FinSight/internal/handler/api"
	mid "FinSight/internal/middleware"
	internalrepo "FinSight/internal/repository"
	"FinSight/internal/service/backendapi"
	icache "FinSight/internal/service/cache"
	"FinSight/internal/service/pushfeed"
	"FinSight/internal/service/voice"
	"FinSight/internal/usecase"
	"FinSight/pkg/bus"
	"FinSight/pkg/cache"
	pkgch "FinSight/pkg/clickhouse"
	"FinSight/pkg/config"
	xhttp "FinSight/pkg/http"
	pkgkafka "FinSight/pkg/kafka"
	applogger "FinSight/pkg/logger"
	"FinSight/pkg/metrics"
	pkgqueue "FinSight/pkg/queue"
	"FinSight/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBackendClient creates the REST client for the portfolio backend.
func ProvideBackendClient(cfg *config.Config) *backendapi.Client {
	return backendapi.NewClient(cfg)
}

// ProvideHealthChecker exposes the backend client to the health gate.
func ProvideHealthChecker(c *backendapi.Client) repository.HealthChecker {
	return c
}

// ProvideMetricsSource exposes the backend client to the poller.
func ProvideMetricsSource(c *backendapi.Client) repository.MetricsSource {
	return c
}

// ProvideCacheService picks the cache backing the cached query: layered
// memory+Redis when Redis is configured, in-process memory otherwise.
func ProvideCacheService(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, port := splitRedisAddr(cfg.Redis.Addr)
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix("finsight"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc), nil
}

func splitRedisAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideCachedQuery creates the cache-backed portfolio query.
func ProvideCachedQuery(client *backendapi.Client, svc cache.Service, cfg *config.Config, l *applogger.Logger) *backendapi.CachedQuery {
	q := backendapi.NewCachedQuery(client, svc, cfg.Query.CacheTTL)
	q.SetLogger(l)
	return q
}

// ProvidePortfolioQuery exposes the cached query to the session.
func ProvidePortfolioQuery(q *backendapi.CachedQuery) repository.PortfolioQuery {
	return q
}

// ProvidePushStream creates the push transport selected by config.
func ProvidePushStream(cfg *config.Config) repository.PushStream {
	if cfg.Push.Transport == "kafka" {
		return pushfeed.NewKafkaFeed(cfg.Kafka.Brokers, cfg.Kafka.DeltasTopic, cfg.Kafka.Consumer.GroupID)
	}
	return pushfeed.NewWebSocket(cfg.Push.WebSocketURL, cfg.Push.Channels, cfg.Push.ReconnectDelay, cfg.Push.PingInterval)
}

// ProvideHealthGate creates the backend health gate.
func ProvideHealthGate(checker repository.HealthChecker, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.HealthGate {
	return usecase.NewHealthGate(checker, cfg.Health.Timeout, cfg.Health.SettleDelay, m, l)
}

// ProvideSnapshotTopic creates the sticky snapshot topic.
func ProvideSnapshotTopic() *bus.Topic[models.PortfolioSnapshot] {
	return bus.NewTopic[models.PortfolioSnapshot](16)
}

// ProvideDashboardSession creates the dashboard session with its delta
// pipeline. The pipeline sinks into the session, so both are built here.
func ProvideDashboardSession(
	gate *usecase.HealthGate,
	source repository.MetricsSource,
	stream repository.PushStream,
	query repository.PortfolioQuery,
	topic *bus.Topic[models.PortfolioSnapshot],
	m repository.Metrics,
	tel repository.TelemetryPublisher,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.DashboardSession {
	s := usecase.NewDashboardSession(
		gate, usecase.NewSnapshotResolver(), source, stream, query,
		nil, cfg.Poller.Interval, topic, m, tel, l,
	)
	pipe := mid.NewDeltaPipeline(s, m,
		mid.WithCoalesceWindow(cfg.Push.CoalesceWindow),
		mid.WithMaxWait(cfg.Push.CoalesceMaxWait),
	)
	s.SetPipeline(pipe)
	return s
}

// ProvideNavigationDispatcher creates the navigation dispatcher.
func ProvideNavigationDispatcher(cfg *config.Config, m repository.Metrics, tel repository.TelemetryPublisher, l *applogger.Logger) *usecase.NavigationDispatcher {
	return usecase.NewNavigationDispatcher(cfg.Navigation.PendingTTL, cfg.Navigation.ParamsTTL, icache.NewTTLCache(), m, tel, l)
}

// ProvideIntentResolver creates the voice intent matcher.
func ProvideIntentResolver(cfg *config.Config) *usecase.IntentResolver {
	return usecase.NewIntentResolver(cfg.Voice.Screens, cfg.Voice.MatchThreshold, cfg.Voice.TargetScreen)
}

// ProvideWakeWordCascade creates the wake word cascade. Returns nil when
// voice is disabled.
func ProvideWakeWordCascade(cfg *config.Config, m repository.Metrics, tel repository.TelemetryPublisher, l *applogger.Logger) (*usecase.WakeWordCascade, error) {
	if !cfg.Voice.Enabled {
		return nil, nil
	}
	backends, err := voice.BuildBackends(cfg.Voice.Backends)
	if err != nil {
		return nil, fmt.Errorf("voice backends: %w", err)
	}
	return usecase.NewWakeWordCascade(backends, cfg.Voice.Debounce, m, tel, l), nil
}

// ProvideClickHouseClient creates a ClickHouse client. Returns nil when
// history is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.History.Enabled {
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

	if cfg.ClickHouse.Database != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, []string{
			"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		}); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}

	return client, nil
}

// ProvideSnapshotHistory creates the ClickHouse snapshot store and its
// table. Returns nil when history is disabled.
func ProvideSnapshotHistory(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.SnapshotHistory, error) {
	if chClient == nil {
		return nil, nil
	}
	table := "dashboard_snapshots"
	if cfg.ClickHouse.Database != "" {
		table = cfg.ClickHouse.Database + ".dashboard_snapshots"
	}
	store := internalrepo.NewCHSnapshotHistory(chClient, table)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return store, nil
}

// ProvideHistoryUseCase creates the history read model. Nil store means
// history stays disabled.
func ProvideHistoryUseCase(store repository.SnapshotHistory) *usecase.HistoryUseCase {
	if store == nil {
		return nil
	}
	return usecase.NewHistoryUseCase(store)
}

// ProvideRedisClient creates the Redis connection for the job queue.
// Returns nil when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideHistoryQueue creates the Redis job queue carrying history
// writes. Returns nil unless history runs through the queue.
func ProvideHistoryQueue(cfg *config.Config, l *applogger.Logger, client *redis.Client, store repository.SnapshotHistory) *pkgqueue.RedisQueue {
	if !cfg.History.UseQueue || client == nil || store == nil {
		return nil
	}
	q := pkgqueue.NewRedisQueue(l, &pkgqueue.QueueConfig{
		Workers:    2,
		QueueSize:  256,
		RetryLimit: 3,
		RetryDelay: 5 * time.Second,
	}, client, pkgqueue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewHistoryRecordJob(store))
	return q
}

// ProvideQueueService exposes the job queue as the recorder's publish
// rail. Nil keeps the recorder on direct writes.
func ProvideQueueService(q *pkgqueue.RedisQueue) pkgqueue.QueueService {
	if q == nil {
		return nil
	}
	return q
}

// ProvideHistoryRecorder creates the snapshot history recorder.
func ProvideHistoryRecorder(
	cfg *config.Config,
	session *usecase.DashboardSession,
	store repository.SnapshotHistory,
	qsvc pkgqueue.QueueService,
	topic *bus.Topic[models.PortfolioSnapshot],
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.HistoryRecorder {
	if store == nil {
		return nil
	}
	return usecase.NewHistoryRecorder(session.ID(), store, qsvc, topic, cfg.History.BatchSize, cfg.History.BatchTimeout, m, l)
}

// ProvideRetentionSweeper creates the cron-driven history purger.
func ProvideRetentionSweeper(store repository.SnapshotHistory, cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.RetentionSweeper {
	if store == nil || cfg.History.Retention <= 0 {
		return nil
	}
	return usecase.NewRetentionSweeper(store, cfg.History.Retention, cfg.History.CleanupSchedule, m, l)
}

// ProvideKafkaProducer creates the Kafka producer behind telemetry.
// Returns nil when no brokers or telemetry topic are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.TelemetryTopic == "" {
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

// ProvideTelemetry creates the Kafka telemetry publisher. Nil disables
// event publishing everywhere it is consumed.
func ProvideTelemetry(producer *pkgkafka.Producer, cfg *config.Config) repository.TelemetryPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaTelemetry(producer, cfg.Kafka.TelemetryTopic)
}

// ProvideDashboardHandler creates the HTTP handler with its response
// cache and reset hook. The response cache rides on Redis when it is
// enabled and stays in process otherwise.
func ProvideDashboardHandler(
	l *applogger.Logger,
	session *usecase.DashboardSession,
	history *usecase.HistoryUseCase,
	cascade *usecase.WakeWordCascade,
	dispatcher *usecase.NavigationDispatcher,
	query *backendapi.CachedQuery,
	rcli *redis.Client,
) xhttp.Handler {
	h := api.NewDashboardHandler(l, session, history, cascade, dispatcher)
	if rcli != nil {
		h.SetCache(icache.NewRedisBytes(rcli, "finsight:http"))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	h.SetInvalidator(query)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	session *usecase.DashboardSession,
	dispatcher *usecase.NavigationDispatcher,
	intents *usecase.IntentResolver,
	handler xhttp.Handler,
	cascade *usecase.WakeWordCascade,
	recorder *usecase.HistoryRecorder,
	sweeper *usecase.RetentionSweeper,
	jobQueue *pkgqueue.RedisQueue,
	tel repository.TelemetryPublisher,
	chClient *pkgch.Client,
) *server.App {
	app := server.New(cfg, l, session, dispatcher, intents)
	app.SetHTTPHandler(handler)
	app.SetCascade(cascade)
	app.SetHistory(recorder, sweeper, jobQueue)
	app.SetTelemetry(tel)
	app.SetClickHouse(chClient)
	return app
}
