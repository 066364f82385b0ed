//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalRelay/internal/domain/service"
	"SignalRelay/internal/handler/api"
	internalrepo "SignalRelay/internal/repository"
	"SignalRelay/internal/usecase"
	"SignalRelay/pkg/config"
	"SignalRelay/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideMetricsRecorder,
	ProvideDB,
	internalrepo.NewData,
	ProvideTransactor,
	ProvideRedis,
	ProvideClickHouseClient,
)

var repositorySet = wire.NewSet(
	internalrepo.NewSignalRepository,
	internalrepo.NewSubscriberRepository,
	internalrepo.NewInvoiceRepository,
	ProvideLocker,
	ProvideCache,
	ProvideEventPublisher,
	ProvideSightingLog,
)

var serviceSet = wire.NewSet(
	ProvideCatalog,
	service.NewEntitlements,
	ProvideRegistry,
	ProvideCommandRelay,
	ProvideTokens,
	ProvideLimiter,
	ProvideBot,
	ProvideMessenger,
	ProvidePaymentGateway,
)

var usecaseSet = wire.NewSet(
	ProvideNotifier,
	ProvideBilling,
	ProvideDispatcher,
	usecase.NewIngestor,
	usecase.NewTradeDesk,
	ProvideFrontDesk,
	usecase.NewFeedback,
	usecase.NewMaintenance,
)

var transportSet = wire.NewSet(
	ProvideQueue,
	ProvideKafkaConsumer,
	ProvideKafkaSignalsHandler,
	ProvideSignalsHandler,
	ProvidePaymentsHandler,
	ProvideRelayHandler,
	ProvideFeedbackHandler,
	ProvideHealthHandler,
	api.NewRouter,
	ProvideHTTPServer,
	ProvideScheduler,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(infraSet, repositorySet, serviceSet, usecaseSet, transportSet, ProvideApp)
	return nil, nil, nil
}
