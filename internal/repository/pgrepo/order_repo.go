package pgrepo

import (
	"context"

	"github.com/google/uuid"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

const orderColumns = "id, created_at, updated_at, user_id, amount, description, status"

type OrderRepository struct {
	db uow.DBTX
}

func NewOrderRepository(db uow.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (o *OrderRepository) Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	row := o.db.QueryRow(ctx, `
		INSERT INTO orders (user_id, amount, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		args.UserID, args.Amount, args.Description, domain.OrderStatusNew)

	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "creating order for user `%d`", args.UserID)
	}
	return order, nil
}

func (o *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := o.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "finding order by id `%s`", id)
	}
	return order, nil
}

// FindForUser возвращает заказ по id, принадлежащий указанному юзеру. Заказ чужого юзера
// неотличим от несуществующего — в обоих случаях ErrRecordNotFound.
func (o *OrderRepository) FindForUser(ctx context.Context, id uuid.UUID, userID int64) (*domain.Order, error) {
	row := o.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID)

	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "finding order `%s` for user `%d`", id, userID)
	}
	return order, nil
}

// GetByUserID возвращает список заказов по id юзера, отсортированный по дате создания по убыванию.
func (o *OrderRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := o.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, convertErr(err, "getting orders by userID `%d`", userID)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning order for userID `%d`", userID)
		}
		orders = append(orders, *order)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting orders by userID `%d`", userID)
	}
	return orders, nil
}

func (o *OrderRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.OrderStatusType,
) (*domain.Order, error) {
	row := o.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, status)

	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "updating status of order `%s`", id)
	}
	return order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	err := row.Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.UserID,
		&order.Amount,
		&order.Description,
		&order.Status,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}
