package outbox

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type Broker interface {
	Publish(ctx context.Context, exchange, routingKey string, payload []byte, messageID string) error
	EnsureConnected(ctx context.Context) error
}

type OutboxRepository interface {
	ClaimPending(ctx context.Context, limit int32) ([]domain.OutboxMessage, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
}
