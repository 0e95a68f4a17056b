package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
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

const (
	testEventsExchange    = "gozon.events"
	testBroadcastExchange = "gozon.ws"
)

type OrderServiceTestSuite struct {
	suite.Suite
	mockCtrl       *gomock.Controller
	mockUOW        *uowmocks.MockUOW
	mockTX         *uowmocks.MockTX
	mockOrderRepo  *mocks.MockOrderRepository
	mockInboxRepo  *mocks.MockInboxRepository
	mockOutboxRepo *mocks.MockOutboxRepository
	orderService   *OrderService
}

func TestOrderServiceSuite(t *testing.T) {
	suite.Run(t, new(OrderServiceTestSuite))
}

func (s *OrderServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockOrderRepo = mocks.NewMockOrderRepository(s.mockCtrl)
	s.mockInboxRepo = mocks.NewMockInboxRepository(s.mockCtrl)
	s.mockOutboxRepo = mocks.NewMockOutboxRepository(s.mockCtrl)

	// Мок получения репозитория из uow. Выполняется в инициализации сервиса.
	s.mockUOW.EXPECT().GetRepository(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil).AnyTimes()

	orderService, servErr := NewOrderService(s.mockUOW, testEventsExchange, testBroadcastExchange)
	s.Require().NoError(servErr)
	s.orderService = orderService
}

func (s *OrderServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectTransaction пропускает uow.Do через мок транзакции, как это делает настоящая
// реализация, но без базы.
func (s *OrderServiceTestSuite) expectTransaction() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(s.T().Context(), s.mockTX)
		},
	)
}

func (s *OrderServiceTestSuite) TestCreate() {
	order := domain.Order{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		UserID:      123,
		Amount:      1500,
		Description: gofakeit.ProductName(),
		Status:      domain.OrderStatusNew,
	}

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockOrderRepo.EXPECT().Create(gomock.Any(), repoargs.OrderCreate{
		UserID:      order.UserID,
		Amount:      order.Amount,
		Description: order.Description,
	}).Return(&order, nil)

	// событие payment.request должно попасть в outbox в той же транзакции
	s.mockOutboxRepo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, args repoargs.OutboxEnqueue) error {
			s.Equal(testEventsExchange, args.Exchange)
			s.Equal(events.TypePaymentRequest, args.RoutingKey)

			var evt events.PaymentRequest
			s.Require().NoError(json.Unmarshal(args.Payload, &evt))
			s.NotEmpty(evt.EventID)
			s.Equal(events.TypePaymentRequest, evt.Type)
			s.Equal(order.ID, evt.OrderID)
			s.Equal(order.UserID, evt.UserID)
			s.Equal(order.Amount, evt.Amount)
			return nil
		},
	)

	created, err := s.orderService.Create(s.T().Context(), order.UserID, order.Amount, order.Description)
	s.Require().NoError(err)
	s.Equal(order.ID, created.ID)
	s.Equal(domain.OrderStatusNew, created.Status)
}

func (s *OrderServiceTestSuite) TestCreate_RepoError() {
	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)
	s.mockOrderRepo.EXPECT().Create(gomock.Any(), gomock.Any()).
		Return(nil, domain.ErrUnknown)

	_, err := s.orderService.Create(s.T().Context(), 123, 100, "anything")
	s.Require().ErrorIs(err, domain.ErrUnknown)
}

func (s *OrderServiceTestSuite) TestApplyPaymentResult_Succeeded() {
	order := domain.Order{
		ID:     uuid.New(),
		UserID: 123,
		Amount: 500,
		Status: domain.OrderStatusNew,
	}
	finished := order
	finished.Status = domain.OrderStatusFinished

	evt := events.PaymentResult{
		EventID: uuid.NewString(),
		Type:    events.TypePaymentResult,
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.Amount,
		Status:  string(domain.PaymentStatusSucceeded),
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockOrderRepo.EXPECT().FindByID(gomock.Any(), order.ID).Return(&order, nil)
	s.mockOrderRepo.EXPECT().UpdateStatus(gomock.Any(), order.ID, domain.OrderStatusFinished).
		Return(&finished, nil)

	s.mockOutboxRepo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, args repoargs.OutboxEnqueue) error {
			s.Equal(testBroadcastExchange, args.Exchange)
			s.Equal(events.TypeOrderStatus, args.RoutingKey)

			var statusEvt events.OrderStatus
			s.Require().NoError(json.Unmarshal(args.Payload, &statusEvt))
			s.Equal(order.ID, statusEvt.OrderID)
			s.Equal(string(domain.OrderStatusFinished), statusEvt.Status)
			return nil
		},
	)

	err := s.orderService.ApplyPaymentResult(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) TestApplyPaymentResult_Failed() {
	order := domain.Order{
		ID:     uuid.New(),
		UserID: 123,
		Amount: 500,
		Status: domain.OrderStatusNew,
	}
	cancelled := order
	cancelled.Status = domain.OrderStatusCancelled

	reason := domain.ReasonInsufficientFunds
	evt := events.PaymentResult{
		EventID: uuid.NewString(),
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.Amount,
		Status:  string(domain.PaymentStatusFailed),
		Reason:  &reason,
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).
		Return(s.mockOutboxRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockOrderRepo.EXPECT().FindByID(gomock.Any(), order.ID).Return(&order, nil)
	s.mockOrderRepo.EXPECT().UpdateStatus(gomock.Any(), order.ID, domain.OrderStatusCancelled).
		Return(&cancelled, nil)
	s.mockOutboxRepo.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return(nil)

	err := s.orderService.ApplyPaymentResult(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) TestApplyPaymentResult_DuplicateMessage() {
	evt := events.PaymentResult{
		EventID: uuid.NewString(),
		OrderID: uuid.New(),
		Status:  string(domain.PaymentStatusSucceeded),
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)

	// конфликт в inbox: сообщение уже применялось, заказ трогать нельзя
	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(false, nil)

	err := s.orderService.ApplyPaymentResult(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) TestApplyPaymentResult_OrderNotFound() {
	evt := events.PaymentResult{
		EventID: uuid.NewString(),
		OrderID: uuid.New(),
		Status:  string(domain.PaymentStatusSucceeded),
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockOrderRepo.EXPECT().FindByID(gomock.Any(), evt.OrderID).
		Return(nil, domain.ErrRecordNotFound)

	// неизвестный заказ отбрасывается без ошибки: ack, не requeue
	err := s.orderService.ApplyPaymentResult(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) TestApplyPaymentResult_TerminalStatus() {
	order := domain.Order{
		ID:     uuid.New(),
		UserID: 123,
		Status: domain.OrderStatusFinished,
	}
	evt := events.PaymentResult{
		EventID: uuid.NewString(),
		OrderID: order.ID,
		Status:  string(domain.PaymentStatusFailed),
	}
	payload, marshalErr := json.Marshal(evt)
	s.Require().NoError(marshalErr)

	s.expectTransaction()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.InboxRepoName)).
		Return(s.mockInboxRepo, nil)
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OrderRepoName)).
		Return(s.mockOrderRepo, nil)

	s.mockInboxRepo.EXPECT().Insert(gomock.Any(), evt.EventID, payload).Return(true, nil)
	s.mockOrderRepo.EXPECT().FindByID(gomock.Any(), order.ID).Return(&order, nil)

	// UpdateStatus не ожидается: из конечного статуса переходов нет
	err := s.orderService.ApplyPaymentResult(s.T().Context(), evt.EventID, payload, evt)
	s.Require().NoError(err)
}

func (s *OrderServiceTestSuite) TestGetForUser() {
	order := domain.Order{
		ID:     uuid.New(),
		UserID: 123,
		Status: domain.OrderStatusNew,
	}

	s.mockOrderRepo.EXPECT().FindForUser(gomock.Any(), order.ID, order.UserID).
		Return(&order, nil)

	found, err := s.orderService.GetForUser(s.T().Context(), order.ID, order.UserID)
	s.Require().NoError(err)
	s.Equal(order.ID, found.ID)
}

func (s *OrderServiceTestSuite) TestListForUser() {
	var userID int64 = 123
	orders := []domain.Order{
		{ID: uuid.New(), UserID: userID, Status: domain.OrderStatusFinished},
		{ID: uuid.New(), UserID: userID, Status: domain.OrderStatusNew},
	}

	s.mockOrderRepo.EXPECT().GetByUserID(gomock.Any(), userID).Return(orders, nil)

	got, err := s.orderService.ListForUser(s.T().Context(), userID)
	s.Require().NoError(err)
	s.Len(got, 2)
}
