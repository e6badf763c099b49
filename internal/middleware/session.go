package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie имя cookie с токеном сессии
	SessionCookie = "session"
	ownerIDKey    = "owner_id"
)

// SessionVerifier проверяет токен и возвращает uid владельца
type SessionVerifier interface {
	Parse(token string) (string, error)
}

// RequireSession пропускает только запросы с валидной сессией.
// Токен берётся из cookie session или из заголовка Authorization: Bearer.
func RequireSession(verifier SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		if token == "" {
			if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		ownerID, err := verifier.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(ownerIDKey, ownerID)
		c.Next()
	}
}

// OwnerID uid владельца из контекста, пустая строка без сессии
func OwnerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
