package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/events"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
)

type PaymentService struct {
	uow            uow.UOW
	eventsExchange string
}

func NewPaymentService(u uow.UOW, eventsExchange string) *PaymentService {
	return &PaymentService{
		uow:            u,
		eventsExchange: eventsExchange,
	}
}

// ProcessRequest применяет запрос платежа ровно один раз. Вся работа — одна транзакция:
//  1. Вставка в inbox по messageID; конфликт — сообщение уже обработано, выходим.
//  2. Платеж по этому заказу уже существует (повтор с другим message id) — деньги
//     не списываем, переиздаем результат из существующего платежа.
//  3. Счета юзера нет — платеж FAILED с причиной ReasonAccountNotFound.
//  4. Условное списание одним UPDATE: ноль затронутых строк — FAILED
//     с причиной ReasonInsufficientFunds, иначе SUCCEEDED.
//
// В любом исходе в outbox кладется событие payment.result.
func (p *PaymentService) ProcessRequest(
	ctx context.Context,
	messageID string,
	payload []byte,
	evt events.PaymentRequest,
) error {
	txErr := p.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		inboxRepo, inboxRepoErr := uow.GetAs[InboxRepository](tx, uow.RepositoryName(repoargs.InboxRepoName))
		if inboxRepoErr != nil {
			return inboxRepoErr //nolint:wrapcheck
		}

		inserted, insertErr := inboxRepo.Insert(c, messageID, payload)
		if insertErr != nil {
			return insertErr //nolint:wrapcheck
		}
		if !inserted {
			return nil
		}

		paymentRepo, paymentRepoErr := uow.GetAs[PaymentRepository](tx, uow.RepositoryName(repoargs.PaymentRepoName))
		if paymentRepoErr != nil {
			return paymentRepoErr //nolint:wrapcheck
		}

		existing, findErr := paymentRepo.FindByOrderID(c, evt.OrderID)
		if findErr == nil {
			return p.enqueueResult(c, tx, existing)
		}
		if !errors.Is(findErr, domain.ErrRecordNotFound) {
			return findErr //nolint:wrapcheck
		}

		accountRepo, accountRepoErr := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
		if accountRepoErr != nil {
			return accountRepoErr //nolint:wrapcheck
		}

		if _, accErr := accountRepo.FindByUserID(c, evt.UserID); accErr != nil {
			if errors.Is(accErr, domain.ErrRecordNotFound) {
				return p.failPayment(c, tx, paymentRepo, evt, domain.ReasonAccountNotFound)
			}
			return accErr //nolint:wrapcheck
		}

		if _, debitErr := accountRepo.DebitIfEnough(c, evt.UserID, evt.Amount); debitErr != nil {
			if errors.Is(debitErr, domain.ErrRecordNotFound) {
				return p.failPayment(c, tx, paymentRepo, evt, domain.ReasonInsufficientFunds)
			}
			return debitErr //nolint:wrapcheck
		}

		payment, createErr := paymentRepo.Create(c, repoargs.PaymentCreate{
			OrderID: evt.OrderID,
			UserID:  evt.UserID,
			Amount:  evt.Amount,
			Status:  domain.PaymentStatusSucceeded,
		})
		if createErr != nil {
			return createErr //nolint:wrapcheck
		}

		return p.enqueueResult(c, tx, payment)
	})

	if txErr != nil {
		return fmt.Errorf("processing payment request: %w", txErr)
	}
	return nil
}

func (p *PaymentService) failPayment(
	ctx context.Context,
	tx uow.TX,
	paymentRepo PaymentRepository,
	evt events.PaymentRequest,
	reason string,
) error {
	payment, createErr := paymentRepo.Create(ctx, repoargs.PaymentCreate{
		OrderID: evt.OrderID,
		UserID:  evt.UserID,
		Amount:  evt.Amount,
		Status:  domain.PaymentStatusFailed,
		Reason:  &reason,
	})
	if createErr != nil {
		return createErr //nolint:wrapcheck
	}
	return p.enqueueResult(ctx, tx, payment)
}

func (p *PaymentService) enqueueResult(ctx context.Context, tx uow.TX, payment *domain.Payment) error {
	return enqueueEvent(ctx, tx, p.eventsExchange, events.TypePaymentResult, events.NewPaymentResult(payment))
}
