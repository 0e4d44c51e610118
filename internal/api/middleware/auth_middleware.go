package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobgate/internal/session"
)

const sessionKey = "session"

// abortUnauthorized 统一未认证响应。
func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// AuthMiddleware 校验访问令牌并将会话注入上下文。
// 原始令牌一并保留，供上游调用转发。
func AuthMiddleware(verifier *session.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c)
			return
		}

		rawToken := parts[1]
		if strings.TrimSpace(rawToken) == "" {
			abortUnauthorized(c)
			return
		}

		claims, err := verifier.Verify(rawToken)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(sessionKey, session.Session{UserID: claims.UserID, Token: rawToken})
		c.Next()
	}
}

// SessionFromContext 取出中间件注入的会话。
func SessionFromContext(c *gin.Context) (session.Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := value.(session.Session)
	return sess, ok
}
