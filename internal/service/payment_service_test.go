package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/events"
	"github.com/justwannacode/kpo-hw4/internal/repository/repoargs"
	"github.com/justwannacode/kpo-hw4/internal/service/mocks"
	"github.com/justwannacode/kpo-hw4/pkg/uow"
	uowmocks "github.com/justwannacode/kpo-hw4/pkg/uow/mocks"
)

type PaymentServiceTestSuite struct {
	suite.Suite
	mockCtrl        *gomock.Controller
	mockUOW         *uowmocks.MockUOW
	mockTX          *uowmocks.MockTX
	mockPaymentRepo *mocks.MockPaymentRepository
	mockAccountRepo *mocks.MockAccountRepository
	mockInboxRepo   *mocks.MockInboxRepository
	mockOutboxRepo  *mocks.MockOutboxRepository
	paymentService  *PaymentService
}

func TestPaymentServiceSuite(t *testing.T) {
	suite.Run(t, new(PaymentServiceTestSuite))
}

func (s *PaymentServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockPaymentRepo = mocks.NewMockPaymentRepository(s.mockCtrl)
	s.mockAccountRepo = mocks.NewMockAccountRepository(s.mockCtrl)
	s.mockInboxRepo = mocks.NewMockInboxRepository(s.mockCtrl)
	s.mockOutboxRepo = mocks.NewMockOutboxRepository(s.mockCtrl)

	s.paymentService = NewPaymentService(s.mockUOW, testEventsExchange)
}

func (s *PaymentServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *PaymentServiceTestSuite) expectTransaction() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(s.T().Context(), s.mockTX)
		},
	)
}

func (s *PaymentServiceTestSuite) paymentRequest() (events.PaymentRequest, []byte) {
	evt := events.PaymentRequest{
		EventID: uuid.NewString(),
		Type:    events.TypePaymentRequest,
		OrderID: uuid.New(),
		UserID:  123,
		Amount:  700,
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)
	return evt, payload
}

// expectResult проверяет, что в outbox попало событие payment.result с ожидаемыми
// статусом и причиной.
func (s *PaymentServiceTestSuite) expectResult(evt events.PaymentRequest, status domain.PaymentStatusType, reason *string) {
	s.mockOutboxRepo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, args repoargs.OutboxEnqueue) error {
			s.Equal(testEventsExchange, args.Exchange)
			s.Equal(events.TypePaymentResult, args.RoutingKey)

			var result events.PaymentResult
			s.Require().NoError(json.Unmarshal(args.Payload, &result))
			s.Equal(evt.OrderID, result.OrderID)
			s.Equal(evt.UserID, result.UserID)
			s.Equal(evt.Amount, result.Amount)
			s.Equal(string(status), result.Status)
			if reason == nil {
				s.Nil(result.Reason)
			} else {
				s.Require().NotNil(result.Reason)
				s.Equal(*reason, *result.Reason)
			}
			return nil
		},
	)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_Succeeded() {
	evt, payload := s.paymentRequest()

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.PaymentRepoName)).
		Return(s.mockPaymentRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.AccountRepoName)).
		Return(s.mockAccountRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockPaymentRepo.EXPECT().FindByOrderID(gomock.Any(), evt.OrderID).
		Return(nil, domain.ErrRecordNotFound)
	s.mockAccountRepo.EXPECT().FindByUserID(gomock.Any(), evt.UserID).
		Return(&domain.Account{UserID: evt.UserID, Balance: 1000}, nil)
	s.mockAccountRepo.EXPECT().DebitIfEnough(gomock.Any(), evt.UserID, evt.Amount).
		Return(int64(300), nil)
	s.mockPaymentRepo.EXPECT().Create(gomock.Any(), repoargs.PaymentCreate{
		OrderID: evt.OrderID,
		UserID:  evt.UserID,
		Amount:  evt.Amount,
		Status:  domain.PaymentStatusSucceeded,
	}).Return(&domain.Payment{
		ID:      uuid.New(),
		OrderID: evt.OrderID,
		UserID:  evt.UserID,
		Amount:  evt.Amount,
		Status:  domain.PaymentStatusSucceeded,
	}, nil)

	s.expectResult(evt, domain.PaymentStatusSucceeded, nil)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_DuplicateMessage() {
	evt, payload := s.paymentRequest()

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)

	// повтор с тем же message id: ни списания, ни повторного результата
	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(false, nil)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_ExistingPayment() {
	evt, payload := s.paymentRequest()
	existing := domain.Payment{
		ID:      uuid.New(),
		OrderID: evt.OrderID,
		UserID:  evt.UserID,
		Amount:  evt.Amount,
		Status:  domain.PaymentStatusSucceeded,
	}

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.PaymentRepoName)).
		Return(s.mockPaymentRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	// платеж по заказу уже есть (повтор запроса с другим message id): денег не трогаем,
	// переиздаем результат из существующего платежа
	s.mockPaymentRepo.EXPECT().FindByOrderID(gomock.Any(), evt.OrderID).Return(&existing, nil)

	s.expectResult(evt, domain.PaymentStatusSucceeded, nil)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_AccountNotFound() {
	evt, payload := s.paymentRequest()
	reason := domain.ReasonAccountNotFound

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.PaymentRepoName)).
		Return(s.mockPaymentRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.AccountRepoName)).
		Return(s.mockAccountRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockPaymentRepo.EXPECT().FindByOrderID(gomock.Any(), evt.OrderID).
		Return(nil, domain.ErrRecordNotFound)
	s.mockAccountRepo.EXPECT().FindByUserID(gomock.Any(), evt.UserID).
		Return(nil, domain.ErrRecordNotFound)
	s.mockPaymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, args repoargs.PaymentCreate) (*domain.Payment, error) {
			s.Equal(domain.PaymentStatusFailed, args.Status)
			s.Require().NotNil(args.Reason)
			s.Equal(reason, *args.Reason)
			return &domain.Payment{
				ID:      uuid.New(),
				OrderID: args.OrderID,
				UserID:  args.UserID,
				Amount:  args.Amount,
				Status:  args.Status,
				Reason:  args.Reason,
			}, nil
		},
	)

	s.expectResult(evt, domain.PaymentStatusFailed, &reason)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_InsufficientFunds() {
	evt, payload := s.paymentRequest()
	reason := domain.ReasonInsufficientFunds

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.PaymentRepoName)).
		Return(s.mockPaymentRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.AccountRepoName)).
		Return(s.mockAccountRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockPaymentRepo.EXPECT().FindByOrderID(gomock.Any(), evt.OrderID).
		Return(nil, domain.ErrRecordNotFound)
	s.mockAccountRepo.EXPECT().FindByUserID(gomock.Any(), evt.UserID).
		Return(&domain.Account{UserID: evt.UserID, Balance: 100}, nil)
	// ноль затронутых строк условного списания приходит как ErrRecordNotFound
	s.mockAccountRepo.EXPECT().DebitIfEnough(gomock.Any(), evt.UserID, evt.Amount).
		Return(int64(0), domain.ErrRecordNotFound)
	s.mockPaymentRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, args repoargs.PaymentCreate) (*domain.Payment, error) {
			s.Equal(domain.PaymentStatusFailed, args.Status)
			s.Require().NotNil(args.Reason)
			s.Equal(reason, *args.Reason)
			return &domain.Payment{
				ID:      uuid.New(),
				OrderID: args.OrderID,
				UserID:  args.UserID,
				Amount:  args.Amount,
				Status:  args.Status,
				Reason:  args.Reason,
			}, nil
		},
	)

	s.expectResult(evt, domain.PaymentStatusFailed, &reason)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *PaymentServiceTestSuite) TestProcessRequest_InboxError() {
	evt, payload := s.paymentRequest()

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).
		Return(false, domain.ErrUnknown)

	err := s.paymentService.ProcessRequest(s.T().Context(), evt.EventID, payload, evt)
	s.Require().ErrorIs(err, domain.ErrUnknown)
}
