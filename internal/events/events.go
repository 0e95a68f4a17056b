// Package events описывает контракты событий, ходящих между сервисами через брокер.
// Поле Type совпадает с routing key события.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
)

const (
	TypePaymentRequest = "payment.request"
	TypePaymentResult  = "payment.result"
	TypeOrderStatus    = "order.status"
)

type PaymentRequest struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type PaymentResult struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	OrderID     uuid.UUID `json:"order_id"`
	UserID      int64     `json:"user_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	Reason      *string   `json:"reason"`
	ProcessedAt time.Time `json:"processed_at"`
}

type OrderStatus struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"order_id"`
	UserID    int64     `json:"user_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPaymentRequest формирует событие запроса платежа для созданного заказа.
func NewPaymentRequest(order *domain.Order) PaymentRequest {
	return PaymentRequest{
		EventID:   uuid.NewString(),
		Type:      TypePaymentRequest,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Amount:    order.Amount,
		CreatedAt: time.Now().UTC(),
	}
}

// NewPaymentResult формирует событие результата платежа. Для платежа со статусом
// PaymentStatusSucceeded Reason равен nil.
func NewPaymentResult(payment *domain.Payment) PaymentResult {
	return PaymentResult{
		EventID:     uuid.NewString(),
		Type:        TypePaymentResult,
		OrderID:     payment.OrderID,
		UserID:      payment.UserID,
		Amount:      payment.Amount,
		Status:      string(payment.Status),
		Reason:      payment.Reason,
		ProcessedAt: time.Now().UTC(),
	}
}

// NewOrderStatus формирует широковещательное событие смены статуса заказа для WebSocket подписчиков.
func NewOrderStatus(order *domain.Order) OrderStatus {
	return OrderStatus{
		EventID:   uuid.NewString(),
		Type:      TypeOrderStatus,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    string(order.Status),
		UpdatedAt: time.Now().UTC(),
	}
}
