package api

import (
	"github.com/gin-gonic/gin"

	"github.com/justwannacode/kpo-hw4/internal/transport/api/middlewares"
)

// getUserIDFromContext возвращает id юзера, записанный middleware RequireUserID.
// Вызывается только за этим middleware, поэтому ноль здесь невозможен.
func getUserIDFromContext(c *gin.Context) int64 {
	return c.GetInt64(middlewares.CurrentUserIDKey)
}
