package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/justwannacode/kpo-hw4/internal/domain"
	"github.com/justwannacode/kpo-hw4/internal/logger"
	"github.com/justwannacode/kpo-hw4/internal/transport/api/mocks"
	"github.com/justwannacode/kpo-hw4/internal/transport/api/testutils"
)

type AccountsHandlerTestSuite struct {
	suite.Suite
	mockCtrl           *gomock.Controller
	mockAccountService *mocks.MockAccountServicer
	router             *gin.Engine
}

func TestAccountsHandlerSuite(t *testing.T) {
	suite.Run(t, new(AccountsHandlerTestSuite))
}

func (s *AccountsHandlerTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockAccountService = mocks.NewMockAccountServicer(s.mockCtrl)

	gin.SetMode(gin.TestMode)
	s.router = NewPaymentsRouter(PaymentsRouterArgs{
		Logger:         logger.New(io.Discard),
		AccountService: s.mockAccountService,
	})
}

func (s *AccountsHandlerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

func (s *AccountsHandlerTestSuite) TestCreate() {
	var newUserID int64 = 1
	var existingUserID int64 = 2

	s.mockAccountService.EXPECT().Create(gomock.Any(), newUserID).
		Return(&domain.Account{ID: uuid.New(), UserID: newUserID, Balance: 0}, nil)
	s.mockAccountService.EXPECT().Create(gomock.Any(), existingUserID).
		Return(nil, domain.ErrAccountExists)

	cases := []struct {
		name       string
		userID     int64
		wantStatus int
	}{
		{
			name:       "all ok",
			userID:     newUserID,
			wantStatus: http.StatusOK,
		}, {
			name:       "already exists",
			userID:     existingUserID,
			wantStatus: http.StatusConflict,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			res := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodPost,
				URL:    AccountsRoute,
			}, userHeader(t.userID))
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()

			s.Equal(t.wantStatus, res.StatusCode)

			if t.wantStatus == http.StatusOK {
				var got BalanceResponse
				s.Require().NoError(json.NewDecoder(res.Body).Decode(&got))
				s.Equal(t.userID, got.UserID)
				s.Zero(got.Balance)
			}
		})
	}
}

func (s *AccountsHandlerTestSuite) TestTopUp() {
	var userID int64 = 1
	var noAccountUserID int64 = 2

	s.mockAccountService.EXPECT().TopUp(gomock.Any(), userID, int64(500)).
		Return(int64(1500), nil)
	s.mockAccountService.EXPECT().TopUp(gomock.Any(), noAccountUserID, int64(500)).
		Return(int64(0), domain.ErrRecordNotFound)

	validPayload := []byte(`{"amount":500}`)

	cases := []struct {
		name       string
		userID     int64
		payload    []byte
		wantStatus int
	}{
		{
			name:       "all ok",
			userID:     userID,
			payload:    validPayload,
			wantStatus: http.StatusOK,
		}, {
			name:       "no account",
			userID:     noAccountUserID,
			payload:    validPayload,
			wantStatus: http.StatusNotFound,
		}, {
			name:       "negative amount",
			userID:     userID,
			payload:    []byte(`{"amount":-5}`),
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			res := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodPost,
				URL:    TopUpRoute,
				Body:   bytes.NewReader(t.payload),
			}, userHeader(t.userID))
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()

			s.Equal(t.wantStatus, res.StatusCode)

			if t.wantStatus == http.StatusOK {
				var got BalanceResponse
				s.Require().NoError(json.NewDecoder(res.Body).Decode(&got))
				s.Equal(int64(1500), got.Balance)
			}
		})
	}
}

func (s *AccountsHandlerTestSuite) TestBalance() {
	var userID int64 = 1
	var noAccountUserID int64 = 2

	s.mockAccountService.EXPECT().GetBalance(gomock.Any(), userID).
		Return(int64(700), nil)
	s.mockAccountService.EXPECT().GetBalance(gomock.Any(), noAccountUserID).
		Return(int64(0), domain.ErrRecordNotFound)

	cases := []struct {
		name       string
		userID     int64
		wantStatus int
	}{
		{
			name:       "all ok",
			userID:     userID,
			wantStatus: http.StatusOK,
		}, {
			name:       "no account",
			userID:     noAccountUserID,
			wantStatus: http.StatusNotFound,
		},
	}
	for _, t := range cases {
		s.Run(t.name, func() {
			res := testutils.MakeRequest(testutils.RequestArgs{
				Router: s.router,
				Method: http.MethodGet,
				URL:    BalanceRoute,
			}, userHeader(t.userID))
			defer func() {
				s.Require().NoError(res.Body.Close())
			}()

			s.Equal(t.wantStatus, res.StatusCode)

			if t.wantStatus == http.StatusOK {
				var got BalanceResponse
				s.Require().NoError(json.NewDecoder(res.Body).Decode(&got))
				s.Equal(int64(700), got.Balance)
			}
		})
	}
}
