package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/events"
)

const snapshotTimeout = 3 * time.Second

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

type OrderFinder interface {
	Find(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
}

type Handler struct {
	registry *Registry
	svs      OrderFinder
	upgrader websocket.Upgrader
	l        *logrus.Entry
}

func NewHandler(registry *Registry, svs OrderFinder, l *logrus.Logger) *Handler {
	return &Handler{
		registry: registry,
		svs:      svs,
		upgrader: websocket.Upgrader{
			// источник запроса проверяет gateway, сервис за ним доверяет всем
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		l: l.WithFields(logrus.Fields{
			"component": "ws",
			"module":    "handler",
		}),
	}
}

// snapshot текущее состояние заказа, отправляется сразу после подписки.
type snapshot struct {
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subscribe GET /ws/orders/:id. Держит соединение открытым до отключения клиента;
// смены статуса приходят через Registry.Broadcast.
func (h *Handler) Subscribe(c *gin.Context) {
	orderID, parseErr := uuid.Parse(c.Param("id"))
	if parseErr != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	conn, upgradeErr := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if upgradeErr != nil {
		// Upgrade сам пишет ответ с ошибкой
		h.l.WithError(upgradeErr).Debug("websocket upgrade failed")
		return
	}

	// запись снапшота идет через обертку из реестра: с момента регистрации
	// в соединение может писать и горутина рассылки
	cl := h.registry.Connect(orderID, conn)
	defer func() {
		h.registry.Disconnect(orderID, cl)
		_ = conn.Close()
	}()

	h.sendSnapshot(c.Request.Context(), orderID, cl)

	// читаем до ошибки: выход из цикла чтения означает отключение клиента
	for {
		if _, _, readErr := conn.ReadMessage(); readErr != nil {
			return
		}
	}
}

func (h *Handler) sendSnapshot(ctx context.Context, orderID uuid.UUID, cl *client) {
	reqCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	order, findErr := h.svs.Find(reqCtx, orderID)
	if findErr != nil {
		// подписка на несуществующий заказ валидна: клиент ждет первое событие
		return
	}

	writeErr := cl.writeJSON(snapshot{
		Type:      events.TypeOrderStatus,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		UpdatedAt: order.UpdatedAt,
	})
	if writeErr != nil {
		h.l.WithError(writeErr).Debug("snapshot write failed")
	}
}
