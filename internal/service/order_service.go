package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/events"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

type OrderService struct {
	uow               uow.UOW
	orderRepo         OrderRepository
	eventsExchange    string
	broadcastExchange string
}

func NewOrderService(u uow.UOW, eventsExchange, broadcastExchange string) (*OrderService, error) {
	orderRepo, err := uow.GetRepositoryAs[OrderRepository](u, uow.RepositoryName(repoargs.OrderRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &OrderService{
		uow:               u,
		orderRepo:         orderRepo,
		eventsExchange:    eventsExchange,
		broadcastExchange: broadcastExchange,
	}, nil
}

// Create создает заказ и событие payment.request в outbox одной транзакцией:
// заказ без события (или событие без заказа) в базе оказаться не может.
func (o *OrderService) Create(ctx context.Context, userID, amount int64, description string) (*domain.Order, error) {
	var order *domain.Order

	txErr := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		orderRepo, repoErr := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}

		created, createErr := orderRepo.Create(c, repoargs.OrderCreate{
			UserID:      userID,
			Amount:      amount,
			Description: description,
		})
		if createErr != nil {
			return createErr //nolint:wrapcheck
		}
		order = created

		return enqueueEvent(c, tx, o.eventsExchange, events.TypePaymentRequest, events.NewPaymentRequest(created))
	})

	if txErr != nil {
		return nil, fmt.Errorf("creating order: %w", txErr)
	}
	return order, nil
}

// GetForUser возвращает заказ по id в рамках заказов юзера.
func (o *OrderService) GetForUser(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error) {
	order, err := o.orderRepo.FindForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return order, nil
}

// Find возвращает заказ по id без привязки к юзеру (снапшот для WebSocket подписки).
func (o *OrderService) Find(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := o.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return order, nil
}

// ListForUser возвращает заказы юзера, отсортированные по дате создания по убыванию.
func (o *OrderService) ListForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := o.orderRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return orders, nil
}

// ApplyPaymentResult применяет результат платежа к заказу. Идемпотентный эффект
// в одной транзакции:
//  1. Вставка в inbox по messageID; конфликт — сообщение уже применено, выходим.
//  2. Заказ не найден — отбрасываем: повтор ценности не имеет, запрос платежа создавал
//     этот же сервис.
//  3. Заказ в конечном статусе — отбрасываем (защита от гонки дублей результата).
//  4. Иначе переводим NEW -> FINISHED/CANCELLED и кладем в outbox широковещательное
//     событие order.status для WebSocket рассылки.
func (o *OrderService) ApplyPaymentResult(
	ctx context.Context,
	messageID string,
	payload []byte,
	evt events.PaymentResult,
) error {
	txErr := o.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		inboxRepo, inboxRepoErr := uow.GetAs[InboxRepository](tx, uow.RepositoryName(repoargs.InboxRepoName))
		if inboxRepoErr != nil {
			return inboxRepoErr //nolint:wrapcheck
		}

		inserted, insertErr := inboxRepo.Insert(c, messageID, payload)
		if insertErr != nil {
			return insertErr //nolint:wrapcheck
		}
		if !inserted {
			return nil
		}

		orderRepo, orderRepoErr := uow.GetAs[OrderRepository](tx, uow.RepositoryName(repoargs.OrderRepoName))
		if orderRepoErr != nil {
			return orderRepoErr //nolint:wrapcheck
		}

		order, findErr := orderRepo.FindByID(c, evt.OrderID)
		if findErr != nil {
			if errors.Is(findErr, domain.ErrRecordNotFound) {
				return nil
			}
			return findErr //nolint:wrapcheck
		}

		if order.Status.Terminal() {
			return nil
		}

		newStatus := domain.OrderStatusCancelled
		if evt.Status == string(domain.PaymentStatusSucceeded) {
			newStatus = domain.OrderStatusFinished
		}

		updated, updateErr := orderRepo.UpdateStatus(c, order.ID, newStatus)
		if updateErr != nil {
			return updateErr //nolint:wrapcheck
		}

		return enqueueEvent(c, tx, o.broadcastExchange, events.TypeOrderStatus, events.NewOrderStatus(updated))
	})

	if txErr != nil {
		return fmt.Errorf("applying payment result: %w", txErr)
	}
	return nil
}

// enqueueEvent сериализует событие и кладет его в outbox в рамках текущей транзакции.
func enqueueEvent(ctx context.Context, tx uow.TX, exchange, routingKey string, evt any) error {
	payload, marshalErr := json.Marshal(evt)
	if marshalErr != nil {
		return fmt.Errorf("marshal %s event: %w", routingKey, marshalErr)
	}

	outboxRepo, repoErr := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
	if repoErr != nil {
		return repoErr //nolint:wrapcheck
	}

	return outboxRepo.Enqueue(ctx, repoargs.OutboxEnqueue{ //nolint:wrapcheck
		Exchange:   exchange,
		RoutingKey: routingKey,
		Payload:    payload,
	})
}
