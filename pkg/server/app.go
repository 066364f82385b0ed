package server

import (
	"context"
	"errors"
	"fmt"

	"SignalRelay/internal/scheduler"
	"SignalRelay/internal/service/relay"
	"SignalRelay/internal/service/telegram"
	"SignalRelay/pkg/config"
	xhttp "SignalRelay/pkg/http"
	pkgkafka "SignalRelay/pkg/kafka"
	applogger "SignalRelay/pkg/logger"
	"SignalRelay/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	queue      *queue.RedisQueue
	scheduler  *scheduler.Scheduler
	registry   *relay.Registry

	consumer *pkgkafka.Consumer
	kh       pkgkafka.MessageHandler
	bot      *telegram.Bot
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	registry *relay.Registry,
) *App {
	return &App{
		cfg:        cfg,
		log:        log.With(applogger.String("component", "app")),
		httpServer: httpServer,
		queue:      q,
		scheduler:  sched,
		registry:   registry,
	}
}

// SetConsumer enables the raw signal topic consumer.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer, a.kh = c, h
}

// SetBot enables Telegram long polling.
func (a *App) SetBot(b *telegram.Bot) { a.bot = b }

// Run starts every component and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.queue.Start(); err != nil {
		return fmt.Errorf("queue start: %w", err)
	}
	a.log.Info("queue workers started", applogger.Int("workers", a.cfg.Queue.Workers))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	a.scheduler.Start()

	botDone := make(chan struct{})
	if a.bot != nil {
		go func() {
			defer close(botDone)
			a.bot.Start(ctx)
		}()
	} else {
		close(botDone)
		a.log.Warn("telegram disabled, outbound messages are logged only")
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return errors.Join(err, a.shutdown())
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	err := a.shutdown()
	<-botDone
	return err
}

// shutdown stops intake first, then workers, then live sockets. Clients
// are closed by the injector's cleanup.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		a.log.Warn("scheduler stop error", applogger.Error(err))
	}
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", applogger.Error(err))
	}
	a.registry.CloseAll()

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}
