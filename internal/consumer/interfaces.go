package consumer

import (
	"context"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/justwannacode/kpo-hw4/internal/events"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

// Handler обрабатывает одно сообщение брокера. Возврат ошибки означает nack:
// доставка будет повторена (или отброшена, для широковещательных очередей).
type Handler interface {
	Handle(ctx context.Context, messageID string, body []byte) error
}

type Broker interface {
	Consume(queue string) (<-chan amqp.Delivery, error)
	ConsumeBroadcast(routingKey string) (<-chan amqp.Delivery, error)
	EnsureConnected(ctx context.Context) error
}

type PaymentProcessor interface {
	ProcessRequest(ctx context.Context, messageID string, payload []byte, evt events.PaymentRequest) error
}

type ResultApplier interface {
	ApplyPaymentResult(ctx context.Context, messageID string, payload []byte, evt events.PaymentResult) error
}

type Broadcaster interface {
	Broadcast(orderID uuid.UUID, message []byte)
}
