package pgrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

const outboxColumns = "id, created_at, exchange, routing_key, payload, attempts, last_error, published_at"

type OutboxRepository struct {
	db uow.DBTX
}

func NewOutboxRepository(db uow.DBTX) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (o *OutboxRepository) Enqueue(ctx context.Context, args repoargs.OutboxEnqueue) error {
	_, err := o.db.Exec(ctx, `
		INSERT INTO outbox_messages (exchange, routing_key, payload)
		VALUES ($1, $2, $3)`,
		args.Exchange, args.RoutingKey, args.Payload)
	if err != nil {
		return convertErr(err, "enqueueing outbox message `%s`", args.RoutingKey)
	}
	return nil
}

// ClaimPending выбирает до limit неопубликованных сообщений в порядке создания.
// FOR UPDATE SKIP LOCKED: строки, уже захваченные конкурентным экземпляром паблишера,
// пропускаются — инстансы можно масштабировать горизонтально без двойной публикации
// в пределах окна блокировки.
func (o *OutboxRepository) ClaimPending(ctx context.Context, limit int32) ([]domain.OutboxMessage, error) {
	rows, err := o.db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit)
	if err != nil {
		return nil, convertErr(err, "claiming pending outbox messages")
	}
	defer rows.Close()

	var messages []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		scanErr := rows.Scan(
			&msg.ID,
			&msg.CreatedAt,
			&msg.Exchange,
			&msg.RoutingKey,
			&msg.Payload,
			&msg.Attempts,
			&msg.LastError,
			&msg.PublishedAt,
		)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning pending outbox message")
		}
		messages = append(messages, msg)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "claiming pending outbox messages")
	}
	return messages, nil
}

// MarkPublished фиксирует успешную публикацию: инкремент попыток, очистка последней ошибки,
// установка published_at.
func (o *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := o.db.Exec(ctx, `
		UPDATE outbox_messages
		SET attempts = attempts + 1, last_error = NULL, published_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return convertErr(err, "marking outbox message `%s` published", id)
	}
	return nil
}

// MarkFailed фиксирует неудачную попытку публикации. published_at остается NULL,
// сообщение будет повторено на следующем цикле.
func (o *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := o.db.Exec(ctx, `
		UPDATE outbox_messages
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1`,
		id, lastError)
	if err != nil {
		return convertErr(err, "marking outbox message `%s` failed", id)
	}
	return nil
}
