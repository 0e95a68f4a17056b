package pgrepo

import (
	"context"

	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

type InboxRepository struct {
	db uow.DBTX
}

func NewInboxRepository(db uow.DBTX) *InboxRepository {
	return &InboxRepository{db: db}
}

// Insert пытается записать сообщение в inbox. Возвращает false если строка с таким
// message_id уже существует — значит сообщение уже было обработано и повтор нужно
// молча подтвердить. Вставка откатывается вместе с транзакцией, поэтому requeue
// после сбоя безопасен.
func (i *InboxRepository) Insert(ctx context.Context, messageID string, payload []byte) (bool, error) {
	tag, err := i.db.Exec(ctx, `
		INSERT INTO inbox_messages (message_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (message_id) DO NOTHING`,
		messageID, payload)
	if err != nil {
		return false, convertErr(err, "inserting inbox message `%s`", messageID)
	}
	return tag.RowsAffected() > 0, nil
}
