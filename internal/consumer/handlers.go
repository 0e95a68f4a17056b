package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/justwannacode/kpo-hw4/internal/events"
)

// PaymentRequestHandler обрабатывает события payment.request на стороне payments.
type PaymentRequestHandler struct {
	svs PaymentProcessor
}

func NewPaymentRequestHandler(svs PaymentProcessor) *PaymentRequestHandler {
	return &PaymentRequestHandler{svs: svs}
}

func (h *PaymentRequestHandler) Handle(ctx context.Context, messageID string, body []byte) error {
	var evt events.PaymentRequest
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode payment.request: %w", err)
	}
	return h.svs.ProcessRequest(ctx, messageID, body, evt) //nolint:wrapcheck
}

// PaymentResultHandler обрабатывает события payment.result на стороне orders.
type PaymentResultHandler struct {
	svs ResultApplier
}

func NewPaymentResultHandler(svs ResultApplier) *PaymentResultHandler {
	return &PaymentResultHandler{svs: svs}
}

func (h *PaymentResultHandler) Handle(ctx context.Context, messageID string, body []byte) error {
	var evt events.PaymentResult
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("decode payment.result: %w", err)
	}
	return h.svs.ApplyPaymentResult(ctx, messageID, body, evt) //nolint:wrapcheck
}

// BroadcastHandler раздает события order.status подключенным WebSocket клиентам.
// Кривой кадр просто логируется и подтверждается.
type BroadcastHandler struct {
	registry Broadcaster
	l        *logrus.Entry
}

func NewBroadcastHandler(registry Broadcaster, l *logrus.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		registry: registry,
		l: l.WithFields(logrus.Fields{
			"component": "consumer",
			"module":    "broadcast-handler",
		}),
	}
}

func (h *BroadcastHandler) Handle(_ context.Context, _ string, body []byte) error {
	var evt events.OrderStatus
	if err := json.Unmarshal(body, &evt); err != nil {
		h.l.WithError(err).Warn("skipping malformed broadcast frame")
		return nil
	}
	h.registry.Broadcast(evt.OrderID, body)
	return nil
}
