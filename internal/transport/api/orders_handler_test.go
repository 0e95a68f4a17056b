package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/logger"
	"github.com/justwannacode/kpo-hw4/internal/transport/api/mocks"
	"github.com/justwannacode/kpo-hw4/internal/transport/api/testutils"
)

type OrdersHandlerTestSuite struct {
	suite.Suite
	mockCtrl         *gomock.Controller
	mockOrderService *mocks.MockOrderServicer
	router           *gin.Engine
}

func TestOrdersHandlerSuite(t *testing.T) {
	suite.Run(t, new(OrdersHandlerTestSuite))
}

func (s *OrdersHandlerTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockOrderService = mocks.NewMockOrderServicer(s.mockCtrl)

	gin.SetMode(gin.TestMode)
	s.router = NewOrdersRouter(OrdersRouterArgs{
		Logger:       logger.New(io.Discard),
		OrderService: s.mockOrderService,
		Subscribe:    func(c *gin.Context) { c.Status(http.StatusOK) },
	})
}

func (s *OrdersHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func userHeader(userID int64) func(*testutils.RequestOptions) {
	return testutils.WithHeader("X-User-Id", fmt.Sprintf("%d", userID))
}

func (s *OrdersHandlerTestSuite) TestCreate() {
	var currentUserID int64 = 1

	order := domain.Order{
		ID:          uuid.New(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		UserID:      currentUserID,
		Amount:      1500,
		Description: "flowers",
		Status:      domain.OrderStatusNew,
	}

	s.mockOrderService.EXPECT().
		Create(gomock.Any(), currentUserID, order.Amount, order.Description).
		Return(&order, nil).Times(1)
	// невалидные запросы до сервиса доходить не должны
	s.mockOrderService.EXPECT().
		Create(gomock.Any(), currentUserID, int64(0), gomock.Any()).
		Times(0)

	validPayload := []byte(`{"amount":1500,"description":"flowers"}`)

	cases := []struct {
		name       string
		payload    []byte
		headers    []func(*testutils.RequestOptions)
		wantStatus int
	}{
		{
			name:       "all ok",
			payload:    validPayload,
			headers:    []func(*testutils.RequestOptions){userHeader(currentUserID)},
			wantStatus: http.StatusOK,
		}, {
			name:       "no user header",
			payload:    validPayload,
			wantStatus: http.StatusBadRequest,
		}, {
			name:       "malformed user header",
			payload:    validPayload,
			headers:    []func(*testutils.RequestOptions){testutils.WithHeader("X-User-Id", "abc")},
			wantStatus: http.StatusBadRequest,
		}, {
			name:       "zero amount",
			payload:    []byte(`{"amount":0,"description":"flowers"}`),
			headers:    []func(*testutils.RequestOptions){userHeader(currentUserID)},
			wantStatus: http.StatusBadRequest,
		}, {
			name:       "missing description",
			payload:    []byte(`{"amount":100}`),
			headers:    []func(*testutils.RequestOptions){userHeader(currentUserID)},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			res := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodPost,
				URL:    OrdersRoute,
				Body:   bytes.NewReader(t.payload),
			}, t.headers...)
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()

			s.Equal(t.wantStatus, res.StatusCode)

			if t.wantStatus == http.StatusOK {
				var got OrderResponse
				s.Require().NoError(json.NewDecoder(res.Body).Decode(&got))
				s.Equal(order.ID, got.ID)
				s.Equal(string(domain.OrderStatusNew), got.Status)
			}
		})
	}
}

func (s *OrdersHandlerTestSuite) TestIndex() {
	var userID int64 = 1

	orders := []domain.Order{
		{ID: uuid.New(), UserID: userID, Amount: 100, Status: domain.OrderStatusFinished},
		{ID: uuid.New(), UserID: userID, Amount: 200, Status: domain.OrderStatusNew},
	}
	s.mockOrderService.EXPECT().ListForUser(gomock.Any(), userID).Return(orders, nil)

	res := testutils.MakeRequest(testutils.RequestArgs{
		Router: s.router,
		Method: http.MethodGet,
		URL:    OrdersRoute,
	}, userHeader(userID))
	defer func() {
		s.Require().NoError(res.Body.Close())
	}()

	s.Equal(http.StatusOK, res.StatusCode)

	var got []OrderResponse
	s.Require().NoError(json.NewDecoder(res.Body).Decode(&got))
	s.Len(got, 2)
	s.Equal(orders[0].ID, got[0].ID)
}

func (s *OrdersHandlerTestSuite) TestShow() {
	var userID int64 = 1
	order := domain.Order{
		ID:     uuid.New(),
		UserID: userID,
		Amount: 100,
		Status: domain.OrderStatusNew,
	}
	missingID := uuid.New()

	s.mockOrderService.EXPECT().GetForUser(gomock.Any(), order.ID, userID).
		Return(&order, nil)
	s.mockOrderService.EXPECT().GetForUser(gomock.Any(), missingID, userID).
		Return(nil, domain.ErrRecordNotFound)

	cases := []struct {
		name       string
		orderID    string
		wantStatus int
	}{
		{
			name:       "all ok",
			orderID:    order.ID.String(),
			wantStatus: http.StatusOK,
		}, {
			name:       "not found",
			orderID:    missingID.String(),
			wantStatus: http.StatusNotFound,
		}, {
			name:       "malformed id",
			orderID:    "not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			res := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodGet,
				URL:    OrdersRoute + "/" + t.orderID,
			}, userHeader(userID))
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()

			s.Equal(t.wantStatus, res.StatusCode)
		})
	}
}
