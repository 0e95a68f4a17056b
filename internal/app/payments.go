package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/justwannacode/kpo-hw4/internal/config"
	"github.com/justwannacode/kpo-hw4/internal/consumer"
	"github.com/justwannacode/kpo-hw4/internal/messaging"
	"github.com/justwannacode/kpo-hw4/internal/outbox"
	"github.com/justwannacode/kpo-hw4/internal/repository/pgrepo"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/internal/service"
	"github.com/justwannacode/kpo-hw4/internal/transport/api"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

// PaymentsApp собирает и запускает сервис платежей: HTTP API счетов, паблишер outbox
// и консюмер payment.request.
type PaymentsApp struct {
	Config *config.Config
	Logger *logrus.Logger
}

func NewPayments(conf *config.Config, l *logrus.Logger) *PaymentsApp {
	return &PaymentsApp{
		Config: conf,
		Logger: l,
	}
}

func (a *PaymentsApp) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Infof("Starting payments service with config: %+v", a.Config)

	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("payments app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork, uowErr := initPaymentsUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("payments app run: %s", uowErr.Error())
	}

	rabbit := messaging.New(messaging.Config{
		URL:            a.Config.RabbitURL,
		EventsExchange: a.Config.EventsExchange,
		Prefetch:       a.Config.ConsumerPrefetch,
	}, a.Logger)
	if rabbitErr := rabbit.Connect(notifyCtx); rabbitErr != nil {
		return fmt.Errorf("payments app run: %s", rabbitErr.Error())
	}
	defer rabbit.Close()

	accountService, svsErr := service.NewAccountService(unitOfWork)
	if svsErr != nil {
		return fmt.Errorf("payments app run: %s", svsErr.Error())
	}
	paymentService := service.NewPaymentService(unitOfWork, a.Config.EventsExchange)

	router := api.NewPaymentsRouter(api.PaymentsRouterArgs{
		Logger:         a.Logger,
		AccountService: accountService,
	})

	errChan := make(chan error, 1)

	go func() {
		if runErr := router.Run(a.Config.RunAddress); runErr != nil {
			errChan <- runErr
		}
	}()

	publisher := outbox.NewPublisher(unitOfWork, rabbit, a.Logger).
		SetPollInterval(a.Config.OutboxPollInterval).
		SetBatchLimit(int32(a.Config.OutboxBatchLimit)) //nolint:gosec
	go publisher.Run(notifyCtx)

	requestConsumer := consumer.NewQueueConsumer(
		rabbit,
		messaging.QueuePaymentRequests,
		consumer.NewPaymentRequestHandler(paymentService),
		a.Logger,
	)
	go requestConsumer.Run(notifyCtx)

	select {
	case <-notifyCtx.Done():
		return notifyCtx.Err() //nolint:wrapcheck
	case err := <-errChan:
		return err
	}
}

func initPaymentsUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	factories := map[string]uow.RepositoryFactory{
		repoargs.AccountRepoName: func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewAccountRepository(dbtx) },
		repoargs.PaymentRepoName: func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewPaymentRepository(dbtx) },
		repoargs.InboxRepoName:   func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewInboxRepository(dbtx) },
		repoargs.OutboxRepoName:  func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewOutboxRepository(dbtx) },
	}
	for name, factory := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factory); regErr != nil {
			return nil, fmt.Errorf("init payments UOW: %s", regErr.Error())
		}
	}
	return unitOfWork, nil
}
