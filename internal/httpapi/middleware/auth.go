package middleware

import (
	"net/http"
	"strings"

	"github.com/agriassist/agri-platform/internal/auth"
	"github.com/agriassist/agri-platform/internal/common"
	"github.com/gin-gonic/gin"
)

const UserIDKey = "userID"

// AuthRequired rejects requests without a valid Bearer token and puts the
// user id on the context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		uid, err := auth.ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}
