package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/justwannacode/kpo-hw4/internal/domain"
)

type AccountsHandler struct {
	accountSvs AccountServicer
}

func NewAccountsHandler(accountSvs AccountServicer) *AccountsHandler {
	return &AccountsHandler{
		accountSvs: accountSvs,
	}
}

type BalanceResponse struct {
	UserID  int64 `json:"user_id"`
	Balance int64 `json:"balance"`
}

type TopUpParams struct {
	Amount int64 `json:"amount" binding:"required,gte=1"`
}

// Create POST AccountsRoute. Счет на юзера один: повторная попытка — 409.
func (a *AccountsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	account, createErr := a.accountSvs.Create(reqCtx, currentUserID)
	if createErr != nil {
		if errors.Is(createErr, domain.ErrAccountExists) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Account already exists"})
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, createErr).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{UserID: account.UserID, Balance: account.Balance})
}

// TopUp POST TopUpRoute. Возвращает баланс после пополнения.
func (a *AccountsHandler) TopUp(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params TopUpParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	balance, topUpErr := a.accountSvs.TopUp(reqCtx, currentUserID, params.Amount)
	if topUpErr != nil {
		if errors.Is(topUpErr, domain.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, topUpErr).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{UserID: currentUserID, Balance: balance})
}

// Balance GET BalanceRoute.
func (a *AccountsHandler) Balance(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	balance, err := a.accountSvs.GetBalance(reqCtx, currentUserID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{UserID: currentUserID, Balance: balance})
}
