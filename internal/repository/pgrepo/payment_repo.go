package pgrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

const paymentColumns = "id, created_at, order_id, user_id, amount, status, reason"

type PaymentRepository struct {
	db uow.DBTX
}

func NewPaymentRepository(db uow.DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create создает платеж. Уникальный индекс на order_id гарантирует не больше одного платежа
// на заказ независимо от дедупликации по message_id: повтор вернет ErrDuplicateKey.
func (p *PaymentRepository) Create(ctx context.Context, args repoargs.PaymentCreate) (*domain.Payment, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, user_id, amount, status, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+paymentColumns,
		args.OrderID, args.UserID, args.Amount, args.Status, args.Reason)

	payment, err := scanPayment(row)
	if err != nil {
		return nil, convertErr(err, "creating payment for order `%s`", args.OrderID)
	}
	return payment, nil
}

func (p *PaymentRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	row := p.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID)

	payment, err := scanPayment(row)
	if err != nil {
		return nil, convertErr(err, "finding payment by orderID `%s`", orderID)
	}
	return payment, nil
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	err := row.Scan(
		&payment.ID,
		&payment.CreatedAt,
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Status,
		&payment.Reason,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
