package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/service"
	"github.com/sirupsen/logrus"
)

const (
	userAddressKey = "userAddress"
	sessionIDKey   = "sessionID"
)

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		// Check if the Authorization header is present and in correct format
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			writeError(c, core.ErrInvalidToken)
			return
		}

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Set(userAddressKey, session.Address)
		c.Set(sessionIDKey, session.ID)

		c.Next()
	}
}

// RequestLogger writes one structured entry per request
func RequestLogger() gin.HandlerFunc {
	log := logrus.WithField("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("Request completed")
		case status >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}
