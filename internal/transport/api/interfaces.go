package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type OrderServicer interface {
	Create(ctx context.Context, userID, amount int64, description string) (*domain.Order, error)
	GetForUser(ctx context.Context, orderID uuid.UUID, userID int64) (*domain.Order, error)
	ListForUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

type AccountServicer interface {
	Create(ctx context.Context, userID int64) (*domain.Account, error)
	TopUp(ctx context.Context, userID, amount int64) (int64, error)
	GetBalance(ctx context.Context, userID int64) (int64, error)
}
