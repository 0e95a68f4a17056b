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
	"github.com/justwannacode/kpo-hw4/internal/events"
	"github.com/justwannacode/kpo-hw4/internal/messaging"
	"github.com/justwannacode/kpo-hw4/internal/outbox"
	"github.com/justwannacode/kpo-hw4/internal/repository/pgrepo"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/internal/service"
	"github.com/justwannacode/kpo-hw4/internal/transport/api"
	"github.com/justwannacode/kpo-hw4/internal/transport/ws"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

// OrdersApp собирает и запускает сервис заказов: HTTP API, WebSocket подписки и три
// фоновые задачи (паблишер outbox, консюмер payment.result, консюмер широковещательных
// событий). Фоновые задачи координируются только через базу и брокер.
type OrdersApp struct {
	Config *config.Config
	Logger *logrus.Logger
}

func NewOrders(conf *config.Config, l *logrus.Logger) *OrdersApp {
	return &OrdersApp{
		Config: conf,
		Logger: l,
	}
}

func (a *OrdersApp) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Infof("Starting orders service with config: %+v", a.Config)

	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("orders app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork, uowErr := initOrdersUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("orders app run: %s", uowErr.Error())
	}

	rabbit := messaging.New(messaging.Config{
		URL:               a.Config.RabbitURL,
		EventsExchange:    a.Config.EventsExchange,
		BroadcastExchange: a.Config.BroadcastExchange,
		Prefetch:          a.Config.ConsumerPrefetch,
	}, a.Logger)
	if rabbitErr := rabbit.Connect(notifyCtx); rabbitErr != nil {
		return fmt.Errorf("orders app run: %s", rabbitErr.Error())
	}
	defer rabbit.Close()

	orderService, svsErr := service.NewOrderService(unitOfWork, a.Config.EventsExchange, a.Config.BroadcastExchange)
	if svsErr != nil {
		return fmt.Errorf("orders app run: %s", svsErr.Error())
	}

	registry := ws.NewRegistry()
	wsHandler := ws.NewHandler(registry, orderService, a.Logger)

	router := api.NewOrdersRouter(api.OrdersRouterArgs{
		Logger:       a.Logger,
		OrderService: orderService,
		Subscribe:    wsHandler.Subscribe,
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

	resultConsumer := consumer.NewQueueConsumer(
		rabbit,
		messaging.QueuePaymentResults,
		consumer.NewPaymentResultHandler(orderService),
		a.Logger,
	)
	go resultConsumer.Run(notifyCtx)

	broadcastConsumer := consumer.NewBroadcastConsumer(
		rabbit,
		events.TypeOrderStatus,
		consumer.NewBroadcastHandler(registry, a.Logger),
		a.Logger,
	)
	go broadcastConsumer.Run(notifyCtx)

	select {
	case <-notifyCtx.Done():
		return notifyCtx.Err() //nolint:wrapcheck
	case err := <-errChan:
		return err
	}
}

func initOrdersUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	factories := map[string]uow.RepositoryFactory{
		repoargs.OrderRepoName:  func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewOrderRepository(dbtx) },
		repoargs.InboxRepoName:  func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewInboxRepository(dbtx) },
		repoargs.OutboxRepoName: func(dbtx uow.DBTX) uow.Repository { return pgrepo.NewOutboxRepository(dbtx) },
	}
	for name, factory := range factories {
		if regErr := unitOfWork.Register(uow.RepositoryName(name), factory); regErr != nil {
			return nil, fmt.Errorf("init orders UOW: %s", regErr.Error())
		}
	}
	return unitOfWork, nil
}
