package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/justwannacode/kpo-hw4/internal/transport/api/middlewares"
)

const (
	DefaultServiceTimeout = 3 * time.Second
)

const (
	OrdersRoute   = "/orders"
	OrderWSRoute  = "/ws/orders/:id"
	AccountsRoute = "/accounts"
	TopUpRoute    = "/accounts/topup"
	BalanceRoute  = "/accounts/balance"
)

type OrdersRouterArgs struct {
	Logger       *logrus.Logger
	OrderService OrderServicer
	// Subscribe хендлер WebSocket подписки; отдельно, чтобы api не зависел от ws
	Subscribe gin.HandlerFunc
}

// NewOrdersRouter собирает роутер сервиса заказов.
func NewOrdersRouter(args OrdersRouterArgs) *gin.Engine {
	r := newEngine(args.Logger)

	ordersHandler := NewOrdersHandler(args.OrderService)

	authorized := r.Group("", middlewares.RequireUserID())
	authorized.POST(OrdersRoute, ordersHandler.Create)
	authorized.GET(OrdersRoute, ordersHandler.Index)
	authorized.GET(OrdersRoute+"/:id", ordersHandler.Show)

	// подписка по id заказа, заголовок юзера для неё не требуется
	r.GET(OrderWSRoute, args.Subscribe)

	return r
}

type PaymentsRouterArgs struct {
	Logger         *logrus.Logger
	AccountService AccountServicer
}

// NewPaymentsRouter собирает роутер сервиса платежей.
func NewPaymentsRouter(args PaymentsRouterArgs) *gin.Engine {
	r := newEngine(args.Logger)

	accountsHandler := NewAccountsHandler(args.AccountService)

	authorized := r.Group("", middlewares.RequireUserID())
	authorized.POST(AccountsRoute, accountsHandler.Create)
	authorized.POST(TopUpRoute, accountsHandler.TopUp)
	authorized.GET(BalanceRoute, accountsHandler.Balance)

	return r
}

func newEngine(l *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if l != nil {
		r.Use(middlewares.Logger(l))
	}
	r.Use(middlewares.Errors())
	return r
}
