package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/farmgate/core"
	"github.com/layer-3/farmgate/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Challenge handles the challenge request
func (h *AuthHandlers) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.authService.RejectMalformed(c.Request.Context(), c.ClientIP(), err))
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), core.ChallengeRequest{
		Address:  req.Address,
		ClientIP: c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":      challenge.Nonce,
		"message":    challenge.Message,
		"expires_at": challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify checks a signed challenge and issues an access token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Nonce     string `json:"nonce" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, h.authService.RejectMalformed(c.Request.Context(), c.ClientIP(), err))
		return
	}

	session, err := h.authService.Authenticate(c.Request.Context(), core.VerifyRequest{
		Address:   req.Address,
		Nonce:     req.Nonce,
		Signature: req.Signature,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": session.Token,
		"token_type":   "Bearer",
		"expires_in":   int64(session.ExpiresAt.Sub(session.IssuedAt).Seconds()),
		"address":      session.Address,
	})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	// User address is set by the auth middleware
	address, exists := c.Get(userAddressKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":    address,
		"session_id": c.GetString(sessionIDKey),
	})
}

// Health reports that the process is serving
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
