package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type OrderRepository interface {
	Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindForUser(ctx context.Context, id uuid.UUID, userID int64) (*domain.Order, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatusType) (*domain.Order, error)
}

type AccountRepository interface {
	Create(ctx context.Context, userID int64) (*domain.Account, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.Account, error)
	AddBalance(ctx context.Context, userID int64, amount int64) (int64, error)
	DebitIfEnough(ctx context.Context, userID int64, amount int64) (int64, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, args repoargs.PaymentCreate) (*domain.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
}

type InboxRepository interface {
	Insert(ctx context.Context, messageID string, payload []byte) (bool, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, args repoargs.OutboxEnqueue) error
}
