// Package repoargs содержит имена репозиториев и структуры аргументов для их методов.
package repoargs

import (
	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
)

const (
	OrderRepoName   = "order"
	AccountRepoName = "account"
	PaymentRepoName = "payment"
	InboxRepoName   = "inbox"
	OutboxRepoName  = "outbox"
)

type OrderCreate struct {
	UserID      int64
	Amount      int64
	Description string
}

type PaymentCreate struct {
	OrderID uuid.UUID
	UserID  int64
	Amount  int64
	Status  domain.PaymentStatusType
	Reason  *string
}

type OutboxEnqueue struct {
	Exchange   string
	RoutingKey string
	Payload    []byte
}
