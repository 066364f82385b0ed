package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	drepo "SignalRelay/internal/domain/repository"
	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/handler/api"
	internalrepo "SignalRelay/internal/repository"
	"SignalRelay/internal/scheduler"
	"SignalRelay/internal/service/ipaymu"
	"SignalRelay/internal/service/ratelimit"
	"SignalRelay/internal/service/relay"
	"SignalRelay/internal/service/telegram"
	"SignalRelay/internal/usecase"
	"SignalRelay/pkg/cache"
	pkgch "SignalRelay/pkg/clickhouse"
	"SignalRelay/pkg/config"
	xhttp "SignalRelay/pkg/http"
	pkgkafka "SignalRelay/pkg/kafka"
	"SignalRelay/pkg/logger"
	"SignalRelay/pkg/metrics"
	"SignalRelay/pkg/queue"
	"SignalRelay/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Producer.Async),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.AutoCreateTopics),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With log.digest on and
// Kafka enabled, repeated errors are folded into digests on the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if !cfg.Log.Digest || producer == nil {
		return l, func() {}, nil
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval: cfg.Log.DigestInterval,
		Topic:        cfg.Kafka.Topics.Logs,
		Publisher:    internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events),
	})
	return l, l.RemoveCollector, nil
}

func ProvideMetrics() *metrics.Recorder {
	return metrics.New()
}

func ProvideMetricsRecorder(r *metrics.Recorder) drepo.Metrics { return r }

// ProvideDB opens Postgres and migrates the schema when configured.
func ProvideDB(cfg *config.Config, log *logger.Logger) (*gorm.DB, func(), error) {
	db, err := internalrepo.OpenPostgres(cfg.Database.DSN, internalrepo.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := internalrepo.AutoMigrate(db); err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("database schema migrated")
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func ProvideTransactor(d *internalrepo.Data) drepo.Transactor { return d }

func ProvideRedis(cfg *config.Config) (*redis.Client, func(), error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, func() { _ = rdb.Close() }, nil
}

func ProvideLocker(cfg *config.Config, rdb *redis.Client) drepo.Locker {
	if !cfg.Payment.DistributedLock {
		return internalrepo.NewLocalLocker()
	}
	return internalrepo.NewRedsyncLocker(internalrepo.NewRedsync(rdb), cfg.Payment.LockTTL)
}

// ProvideCache returns the history cache: process memory, or a redis L2
// behind a short memory L1.
func ProvideCache(cfg *config.Config, rdb *redis.Client) (cache.Service, func()) {
	var c cache.Service
	if cfg.Cache.Redis {
		c = cache.NewLayeredCache(cache.NewRedisCache(rdb, cache.WithRedisPrefix("signalrelay:cache")), cfg.Cache.HistoryTTL/2)
	} else {
		c = cache.NewMemoryCache(cache.WithMemoryTTL(cfg.Cache.HistoryTTL), cache.WithMemoryCleanup(2*cfg.Cache.HistoryTTL))
	}
	return c, func() { _ = c.Close() }
}

func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) drepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topics.Events)
}

// ProvideClickHouseClient connects and creates the analytics tables, or
// returns nil when ClickHouse is off.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithServer(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.UseHTTP),
		pkgch.WithDatabase(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SightingSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func ProvideSightingLog(ch *pkgch.Client, log *logger.Logger) drepo.SightingLog {
	if ch == nil {
		return internalrepo.NoopSightingLog{}
	}
	return internalrepo.NewCHSightingLog(ch, log)
}

func ProvideCatalog() *service.Catalog {
	return service.DefaultCatalog()
}

func ProvideRegistry(log *logger.Logger, rec *metrics.Recorder) *relay.Registry {
	return relay.NewRegistry(log, rec)
}

func ProvideCommandRelay(r *relay.Registry) drepo.CommandRelay { return r }

func ProvideTokens(cfg *config.Config) *relay.Tokens {
	return relay.NewTokens(cfg.Relay.JWTSecret, cfg.Relay.TokenTTL)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Dispatch.ManualTrades)
}

// ProvideBot connects the Telegram bot, or returns nil when disabled.
func ProvideBot(cfg *config.Config, log *logger.Logger) (*telegram.Bot, error) {
	if !cfg.Telegram.Enabled {
		return nil, nil
	}
	return telegram.New(cfg.Telegram.Token, cfg.Telegram.AffixPromptTTL, log)
}

func ProvideMessenger(bot *telegram.Bot, log *logger.Logger) drepo.Messenger {
	if bot == nil {
		return telegram.NewLogMessenger(log)
	}
	return bot.Messenger()
}

func ProvideNotifier(cfg *config.Config, m drepo.Messenger) *usecase.Notifier {
	return usecase.NewNotifier(m, cfg.Dispatch.SendTimeout)
}

func ProvidePaymentGateway(cfg *config.Config, log *logger.Logger) drepo.PaymentGateway {
	return ipaymu.New(ipaymu.Config{
		BaseURL:        cfg.Payment.BaseURL,
		VA:             cfg.Payment.VA,
		APIKey:         cfg.Payment.APIKey,
		PublicURL:      cfg.Payment.PublicURL,
		ReturnURL:      cfg.Payment.ReturnURL,
		CallbackSecret: cfg.Payment.CallbackSecret,
	}, xhttp.NewClient(xhttp.WithTimeout(cfg.Payment.Timeout)), log)
}

func ProvideBilling(
	cfg *config.Config,
	tx drepo.Transactor,
	invoices drepo.InvoiceStore,
	subs drepo.SubscriberStore,
	gateway drepo.PaymentGateway,
	locker drepo.Locker,
	catalog *service.Catalog,
	notifier *usecase.Notifier,
	events drepo.EventPublisher,
	m drepo.Metrics,
	log *logger.Logger,
) *usecase.Billing {
	return usecase.NewBilling(usecase.BillingConfig{
		InvoiceTTL:    cfg.Payment.InvoiceTTL,
		ReminderAfter: cfg.Payment.ReminderAfter,
	}, tx, invoices, subs, gateway, locker, catalog, notifier, events, m, log)
}

func ProvideDispatcher(
	cfg *config.Config,
	subs drepo.SubscriberStore,
	ent *service.Entitlements,
	notifier *usecase.Notifier,
	commands drepo.CommandRelay,
	events drepo.EventPublisher,
	sightings drepo.SightingLog,
	m drepo.Metrics,
	log *logger.Logger,
) usecase.SignalDispatcher {
	return usecase.NewDispatcher(usecase.DispatchConfig{
		Rate:  cfg.Dispatch.Rate,
		Burst: cfg.Dispatch.Burst,
	}, subs, ent, notifier, commands, events, sightings, m, log)
}

// ProvideFrontDesk builds the front desk and hands it to the bot, which
// exists before the desk because billing notifies through the bot.
func ProvideFrontDesk(
	cfg *config.Config,
	subs drepo.SubscriberStore,
	signals drepo.SignalStore,
	ent *service.Entitlements,
	billing *usecase.Billing,
	trades *usecase.TradeDesk,
	tokens *relay.Tokens,
	c cache.Service,
	bot *telegram.Bot,
	log *logger.Logger,
) *usecase.FrontDesk {
	desk := usecase.NewFrontDesk(usecase.FrontDeskConfig{
		RelayURL:   cfg.Relay.PublicURL,
		HistoryTTL: cfg.Cache.HistoryTTL,
	}, subs, signals, ent, billing, trades, tokens, c, log)
	if bot != nil {
		bot.Attach(desk)
	}
	return desk
}

// ProvideQueue creates the signal job queue with its handlers registered.
func ProvideQueue(cfg *config.Config, log *logger.Logger, rdb *redis.Client, ing *usecase.Ingestor) *queue.RedisQueue {
	q := queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Queue.JobTimeout,
	}, rdb, queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
	q.RegisterJobs(usecase.SignalJobs(ing, log)...)
	return q
}

// ProvideKafkaConsumer creates the raw signal consumer when enabled.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, m drepo.Metrics) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerHandleTimeout(cfg.Kafka.Consumer.HandleTimeout),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(usecase.SourceHeaderHook(), usecase.ConsumerErrorHook(m, log)))
	return consumer, nil
}

func ProvideKafkaSignalsHandler(cfg *config.Config, ing *usecase.Ingestor, m drepo.Metrics, log *logger.Logger) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topics.RawSignals, ing, m, log)
}

func ProvideSignalsHandler(cfg *config.Config, log *logger.Logger, q *queue.RedisQueue) *api.SignalsHandler {
	return api.NewSignalsHandler(log, q, cfg.Ingest.Token)
}

func ProvidePaymentsHandler(cfg *config.Config, log *logger.Logger, billing *usecase.Billing) *api.PaymentsHandler {
	return api.NewPaymentsHandler(log, ipaymu.NewVerifier(cfg.Payment.CallbackSecret), billing)
}

func ProvideRelayHandler(cfg *config.Config, log *logger.Logger, tokens *relay.Tokens, r *relay.Registry) *api.RelayHandler {
	return api.NewRelayHandler(log, tokens, r, api.SocketTimings{
		WriteTimeout: cfg.Relay.WriteTimeout,
		PingInterval: cfg.Relay.PingInterval,
	})
}

func ProvideFeedbackHandler(log *logger.Logger, tokens *relay.Tokens, fb *usecase.Feedback) *api.FeedbackHandler {
	return api.NewFeedbackHandler(log, tokens, fb)
}

func ProvideHealthHandler(data *internalrepo.Data, rdb *redis.Client, ch *pkgch.Client) *api.HealthHandler {
	checks := map[string]api.Pinger{
		"postgres": data.Ping,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
	if ch != nil {
		checks["clickhouse"] = ch.Health
	}
	return api.NewHealthHandler(checks)
}

func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, router *api.Router) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(log, router,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithMetrics(path, nil),
	)
}

func ProvideScheduler(cfg *config.Config, log *logger.Logger, billing *usecase.Billing, maint *usecase.Maintenance) (*scheduler.Scheduler, error) {
	specs := scheduler.Specs{
		ExpireInvoices: cfg.Scheduler.ExpireInvoices,
		RemindPending:  cfg.Scheduler.RemindPending,
		ExpireSubs:     cfg.Scheduler.ExpireSubs,
	}
	return scheduler.New(log, scheduler.MaintenanceTasks(specs, billing, maint, log)...)
}

// ProvideApp assembles the application. The consumer and bot are optional.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	registry *relay.Registry,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	bot *telegram.Bot,
	_ *usecase.FrontDesk,
) *server.App {
	app := server.New(cfg, log, srv, q, sched, registry)
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}
	if bot != nil {
		app.SetBot(bot)
	}
	return app
}
