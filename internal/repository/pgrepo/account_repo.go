package pgrepo

import (
	"context"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

const accountColumns = "id, created_at, updated_at, user_id, balance"

type AccountRepository struct {
	db uow.DBTX
}

func NewAccountRepository(db uow.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create заводит счет с нулевым балансом. На user_id висит уникальный индекс — второй счет
// для того же юзера вернет ErrDuplicateKey.
func (a *AccountRepository) Create(ctx context.Context, userID int64) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `
		INSERT INTO accounts (user_id, balance)
		VALUES ($1, 0)
		RETURNING `+accountColumns,
		userID)

	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "creating account for user `%d`", userID)
	}
	return account, nil
}

func (a *AccountRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)

	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "finding account by userID `%d`", userID)
	}
	return account, nil
}

// AddBalance атомарно пополняет баланс и возвращает новое значение.
// Если счета нет — ErrRecordNotFound.
func (a *AccountRepository) AddBalance(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := a.db.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $2, updated_at = now()
		WHERE user_id = $1
		RETURNING balance`,
		userID, amount).Scan(&balance)
	if err != nil {
		return 0, convertErr(err, "topping up account of user `%d`", userID)
	}
	return balance, nil
}

// DebitIfEnough списывает amount одним условным UPDATE: средства уходят только если
// текущий баланс не меньше суммы. Никакого read-modify-write — гонок между конкурентными
// списаниями нет. Если строка не затронута (счета нет или средств не хватает),
// возвращается ErrRecordNotFound.
func (a *AccountRepository) DebitIfEnough(ctx context.Context, userID int64, amount int64) (int64, error) {
	var balance int64
	err := a.db.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $2, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`,
		userID, amount).Scan(&balance)
	if err != nil {
		return 0, convertErr(err, "debiting account of user `%d`", userID)
	}
	return balance, nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.CreatedAt,
		&account.UpdatedAt,
		&account.UserID,
		&account.Balance,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
