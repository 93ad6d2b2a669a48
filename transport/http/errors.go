package http

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/farmgate/core"
	"github.com/sirupsen/logrus"
)

// apiError is the body of every failed response
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// writeError maps err to a status code and error code. Causes are never
// echoed to the client.
func writeError(c *gin.Context, err error) {
	var limitErr *core.RateLimitError

	status := http.StatusInternalServerError
	body := apiError{Code: "internal_error", Message: "Internal error"}

	switch {
	case errors.As(err, &limitErr):
		status = http.StatusTooManyRequests
		body = apiError{Code: "rate_limited", Message: "Too many attempts, try again later"}
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limitErr.RetryAfter.Seconds()))))
	case errors.Is(err, core.ErrRateLimited):
		status = http.StatusTooManyRequests
		body = apiError{Code: "rate_limited", Message: "Too many attempts, try again later"}
	case errors.Is(err, core.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
		body = apiError{Code: "storage_unavailable", Message: "Service temporarily unavailable"}
	case errors.Is(err, core.ErrInvalidNonce):
		status = http.StatusBadRequest
		body = apiError{Code: "invalid_nonce", Message: "Challenge is unknown, expired or already used"}
	case errors.Is(err, core.ErrInvalidSignature):
		status = http.StatusUnauthorized
		body = apiError{Code: "invalid_signature", Message: "Invalid signature"}
	case errors.Is(err, core.ErrMalformedInput):
		status = http.StatusBadRequest
		body = apiError{Code: "malformed_input", Message: "Invalid request"}
	case errors.Is(err, core.ErrTokenExpired):
		status = http.StatusUnauthorized
		body = apiError{Code: "token_expired", Message: "Token expired"}
	case errors.Is(err, core.ErrInvalidToken):
		status = http.StatusUnauthorized
		body = apiError{Code: "invalid_token", Message: "Invalid token"}
	}

	if status >= http.StatusInternalServerError {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}

	c.AbortWithStatusJSON(status, body)
}
