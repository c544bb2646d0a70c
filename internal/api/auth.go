package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Bearer Token Authentication Middleware
//
// The token comes from the resolved configuration. When unset, all
// requests pass (development mode); the health and stream endpoints
// stay public either way.

// AuthMiddleware returns a middleware validating bearer tokens against
// the configured token.
func AuthMiddleware(token string, log *logrus.Logger) gin.HandlerFunc {
	if token == "" && gin.Mode() == gin.ReleaseMode {
		log.Warn("auth token is not set in release mode; scoring endpoints are publicly accessible")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <token>",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Constant-time comparison prevents timing-based token enumeration
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Next()
	}
}
