package domain

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
	UserID      int64
	Amount      int64
	Description string
	Status      OrderStatusType
}

type Account struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    int64
	Balance   int64
}

type Payment struct {
	ID        uuid.UUID
	CreatedAt time.Time
	OrderID   uuid.UUID
	UserID    int64
	Amount    int64
	Status    PaymentStatusType
	Reason    *string
}

// InboxMessage запись таблицы inbox. Сам факт наличия строки с данным MessageID означает,
// что сообщение уже было обработано (или признано неприменимым).
type InboxMessage struct {
	MessageID  string
	Payload    []byte
	ReceivedAt time.Time
}

// OutboxMessage запись таблицы outbox. Создается в одной транзакции с доменной мутацией,
// её породившей. После публикации строка не удаляется (журнал попыток доставки).
type OutboxMessage struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	Exchange    string
	RoutingKey  string
	Payload     []byte
	Attempts    int32
	LastError   *string
	PublishedAt *time.Time
}
