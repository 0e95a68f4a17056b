// Package consumer реализует фоновое потребление сообщений брокера с дедупликацией через inbox.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const reconnectBackoff = time.Second

var errNoMessageKey = errors.New("message has neither transport id nor embedded event_id")

// Consumer читает сообщения из очереди и передает их обработчику. Подтверждение (ack)
// отправляется только после успешного возврата обработчика — то есть после коммита его
// транзакции. Ошибка обработчика приводит к nack: для durable очередей с requeue
// (сообщение будет доставлено снова), для широковещательной — без.
type Consumer struct {
	broker         Broker
	handler        Handler
	l              *logrus.Entry
	queue          string
	routingKey     string
	broadcast      bool
	requeueOnError bool
}

// NewQueueConsumer создает консюмер durable очереди доменных событий.
func NewQueueConsumer(broker Broker, queue string, handler Handler, l *logrus.Logger) *Consumer {
	return &Consumer{
		broker:         broker,
		handler:        handler,
		queue:          queue,
		requeueOnError: true,
		l: l.WithFields(logrus.Fields{
			"component": "consumer",
			"module":    queue,
		}),
	}
}

// NewBroadcastConsumer создает консюмер эксклюзивной очереди fanout обменника.
// Сообщения с ошибкой не возвращаются в очередь: у сломанного широковещательного
// кадра нет ценности повтора.
func NewBroadcastConsumer(broker Broker, routingKey string, handler Handler, l *logrus.Logger) *Consumer {
	return &Consumer{
		broker:         broker,
		handler:        handler,
		routingKey:     routingKey,
		broadcast:      true,
		requeueOnError: false,
		l: l.WithFields(logrus.Fields{
			"component": "consumer",
			"module":    "broadcast",
		}),
	}
}

// Run потребляет сообщения до отмены контекста. При закрытии канала доставок
// (обрыв соединения) переподключается и подписывается заново — топология
// переобъявляется внутри брокера перед возобновлением.
func (c *Consumer) Run(ctx context.Context) {
	c.l.Info("Starting")

	for {
		if ctx.Err() != nil {
			c.l.Info("Got stop signal, exiting...")
			return
		}

		if connErr := c.broker.EnsureConnected(ctx); connErr != nil {
			c.l.WithError(connErr).Error("broker connect error")
			c.sleep(ctx)
			continue
		}

		deliveries, subErr := c.subscribe()
		if subErr != nil {
			c.l.WithError(subErr).Error("subscribe error")
			c.sleep(ctx)
			continue
		}

		c.consumeLoop(ctx, deliveries)
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	if c.broadcast {
		return c.broker.ConsumeBroadcast(c.routingKey)
	}
	return c.broker.Consume(c.queue)
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				c.l.Warn("delivery channel closed")
				return
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	key, keyErr := messageKey(delivery)
	if keyErr != nil {
		c.l.WithError(keyErr).Error("cannot identify message")
		c.nack(delivery)
		return
	}

	if handleErr := c.handler.Handle(ctx, key, delivery.Body); handleErr != nil {
		c.l.WithError(handleErr).
			WithField("messageID", key).
			Error("handle message error")
		c.nack(delivery)
		return
	}

	if ackErr := delivery.Ack(false); ackErr != nil {
		c.l.WithError(ackErr).WithField("messageID", key).Error("ack error")
	}
}

func (c *Consumer) nack(delivery amqp.Delivery) {
	if nackErr := delivery.Nack(false, c.requeueOnError); nackErr != nil {
		c.l.WithError(nackErr).Error("nack error")
	}
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(reconnectBackoff):
	}
}

// messageKey возвращает ключ идентичности сообщения: message id транспортного уровня,
// а при его отсутствии — event_id из тела. Паблишер всегда проставляет message id
// (он равен id строки outbox), так что запасной вариант срабатывает только для
// сообщений, отправленных вручную. Ключ уникален в рамках сервиса-потребителя:
// у каждого сервиса свой inbox и непересекающийся набор очередей.
func messageKey(delivery amqp.Delivery) (string, error) {
	if delivery.MessageId != "" {
		return delivery.MessageId, nil
	}

	var embedded struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(delivery.Body, &embedded); err == nil && embedded.EventID != "" {
		return embedded.EventID, nil
	}
	return "", errNoMessageKey
}
