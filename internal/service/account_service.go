package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

type AccountService struct {
	accountRepo AccountRepository
}

func NewAccountService(u uow.UOW) (*AccountService, error) {
	accountRepo, err := uow.GetRepositoryAs[AccountRepository](u, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &AccountService{accountRepo: accountRepo}, nil
}

// Create заводит счет юзера с нулевым балансом. Если счет уже существует,
// возвращает domain.ErrAccountExists.
func (a *AccountService) Create(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := a.accountRepo.Create(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return account, nil
}

// TopUp атомарно пополняет баланс и возвращает новое значение.
// domain.ErrRecordNotFound — счета не существует.
func (a *AccountService) TopUp(ctx context.Context, userID, amount int64) (int64, error) {
	balance, err := a.accountRepo.AddBalance(ctx, userID, amount)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}
	return balance, nil
}

// GetBalance возвращает текущий баланс счета юзера.
func (a *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := a.accountRepo.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err //nolint:wrapcheck
	}
	return account.Balance, nil
}
