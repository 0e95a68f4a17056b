package middlewares

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const CurrentUserIDKey = "currentUserID"

// RequireUserID извлекает id юзера из заголовка X-User-Id и записывает его в контекст
// (поле CurrentUserIDKey). Аутентификацию выполняет gateway, сервис доверяет заголовку.
// Отсутствующий или кривой заголовок — 400.
func RequireUserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("X-User-Id")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-User-Id header is required"})
			return
		}

		userID, parseErr := strconv.ParseInt(header, 10, 64)
		if parseErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "X-User-Id header is malformed"})
			return
		}

		c.Set(CurrentUserIDKey, userID)
		c.Next()
	}
}
