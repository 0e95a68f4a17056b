// Package messaging владеет соединением с RabbitMQ и топологией обменников/очередей.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	QueuePaymentRequests = "payment_requests"
	QueuePaymentResults  = "payment_results"
)

const (
	dialMaxAttempts  = 10
	dialRetryBackoff = 2 * time.Second
)

type Config struct {
	URL            string
	EventsExchange string
	// BroadcastExchange имя fanout обменника для широковещательных событий статуса заказа.
	// Пустая строка — обменник не объявляется (payments он не нужен).
	BroadcastExchange string
	Prefetch          int
}

// Rabbit держит одно соединение и один мультиплексированный канал на инстанс сервиса.
// Канал работает в режиме publisher confirms и с ограничением prefetch на консюмерах.
type Rabbit struct {
	conf Config
	l    *logrus.Entry

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func New(conf Config, l *logrus.Logger) *Rabbit {
	return &Rabbit{
		conf: conf,
		l: l.WithFields(logrus.Fields{
			"component": "messaging",
			"module":    "rabbit",
		}),
	}
}

// Connect устанавливает соединение (с повторными попытками, брокер может подниматься
// дольше сервиса) и объявляет топологию. Повторный вызов закрывает старое соединение
// и объявляет топологию заново — объявления идемпотентны.
func (r *Rabbit) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectLocked(ctx)
}

// EnsureConnected проверяет живость соединения и канала; при необходимости
// переподключается и переобъявляет топологию.
func (r *Rabbit) EnsureConnected(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() && r.ch != nil && !r.ch.IsClosed() {
		return nil
	}
	r.l.Warn("connection lost, reconnecting")
	return r.connectLocked(ctx)
}

func (r *Rabbit) connectLocked(ctx context.Context) error {
	r.closeLocked()

	var conn *amqp.Connection
	var dialErr error

	for attempt := 1; attempt <= dialMaxAttempts; attempt++ {
		conn, dialErr = amqp.Dial(r.conf.URL)
		if dialErr == nil {
			break
		}
		r.l.WithError(dialErr).
			WithField("CurrentAttempt", fmt.Sprintf("#%d / %d", attempt, dialMaxAttempts)).
			Warnf("dial rabbitmq error, retrying in %.f seconds", dialRetryBackoff.Seconds())

		select {
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck
		case <-time.After(dialRetryBackoff):
		}
	}
	if dialErr != nil {
		return fmt.Errorf("dial rabbitmq after %d attempts: %w", dialMaxAttempts, dialErr)
	}

	ch, chErr := conn.Channel()
	if chErr != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", chErr)
	}

	if confirmErr := ch.Confirm(false); confirmErr != nil {
		_ = conn.Close()
		return fmt.Errorf("enable publisher confirms: %w", confirmErr)
	}

	if qosErr := ch.Qos(r.conf.Prefetch, 0, false); qosErr != nil {
		_ = conn.Close()
		return fmt.Errorf("set channel qos: %w", qosErr)
	}

	if declareErr := r.declareTopology(ch); declareErr != nil {
		_ = conn.Close()
		return declareErr
	}

	r.conn = conn
	r.ch = ch
	r.l.Info("connected to rabbitmq")
	return nil
}

func (r *Rabbit) declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(r.conf.EventsExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}

	if r.conf.BroadcastExchange != "" {
		if err := ch.ExchangeDeclare(r.conf.BroadcastExchange, "fanout", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare broadcast exchange: %w", err)
		}
	}

	bindings := map[string]string{
		QueuePaymentRequests: "payment.request",
		QueuePaymentResults:  "payment.result",
	}
	for queue, routingKey := range bindings {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, routingKey, r.conf.EventsExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// Publish отправляет сообщение в указанный обменник и дожидается подтверждения брокера.
// messageID становится broker-level идентификатором сообщения — по нему консюмер
// дедуплицирует доставки.
func (r *Rabbit) Publish(ctx context.Context, exchange, routingKey string, payload []byte, messageID string) error {
	ch, chErr := r.channel()
	if chErr != nil {
		return chErr
	}

	confirmation, pubErr := ch.PublishWithDeferredConfirmWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			MessageId:    messageID,
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		})
	if pubErr != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, pubErr)
	}

	if !confirmation.Wait() {
		return fmt.Errorf("publish to %s/%s: nacked by broker", exchange, routingKey)
	}
	return nil
}

// Consume подписывается на durable очередь. Подтверждения ручные: ack только после
// успешного коммита обработчика.
func (r *Rabbit) Consume(queue string) (<-chan amqp.Delivery, error) {
	ch, chErr := r.channel()
	if chErr != nil {
		return nil, chErr
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume queue %s: %w", queue, err)
	}
	return deliveries, nil
}

// ConsumeBroadcast объявляет эксклюзивную auto-delete очередь, привязывает её к fanout
// обменнику и подписывается. У каждого инстанса сервиса своя такая очередь — одно
// широковещательное событие доходит до всех инстансов и их WebSocket клиентов.
func (r *Rabbit) ConsumeBroadcast(routingKey string) (<-chan amqp.Delivery, error) {
	if r.conf.BroadcastExchange == "" {
		return nil, errors.New("broadcast exchange is not configured")
	}

	ch, chErr := r.channel()
	if chErr != nil {
		return nil, chErr
	}

	queue, declareErr := ch.QueueDeclare("", false, true, true, false, nil)
	if declareErr != nil {
		return nil, fmt.Errorf("declare broadcast queue: %w", declareErr)
	}
	if bindErr := ch.QueueBind(queue.Name, routingKey, r.conf.BroadcastExchange, false, nil); bindErr != nil {
		return nil, fmt.Errorf("bind broadcast queue: %w", bindErr)
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume broadcast queue: %w", err)
	}
	return deliveries, nil
}

// Close закрывает соединение. Идемпотентен и терпим к сбоям: закрытие уже закрытого
// или сломанного соединения не возвращает ошибку наружу.
func (r *Rabbit) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked()
}

func (r *Rabbit) closeLocked() {
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			r.l.WithError(err).Debug("closing channel")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			r.l.WithError(err).Debug("closing connection")
		}
	}
	r.ch = nil
	r.conn = nil
}

func (r *Rabbit) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil || r.ch.IsClosed() {
		return nil, errors.New("rabbitmq channel is not open")
	}
	return r.ch, nil
}
