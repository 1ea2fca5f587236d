package httputil

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/slotbook/booking-api/pkg/errors"
)

var exposeDetails atomic.Bool

// ExposeErrorDetails toggles the "error" detail string on error responses.
// It is off by default and should stay off in production.
func ExposeErrorDetails(on bool) {
	exposeDetails.Store(on)
}

// Respond writes a success envelope. Payload keys are placed at the top level
// next to "success" and "message".
func Respond(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// RespondWithSuccess sends a 200 envelope
func RespondWithSuccess(c *gin.Context, message string, payload gin.H) {
	Respond(c, http.StatusOK, message, payload)
}

// RespondWithList sends a 200 envelope carrying a list and its count under key.
func RespondWithList[T any](c *gin.Context, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	Respond(c, http.StatusOK, "", gin.H{"count": len(items), key: items})
}

// RespondWithError sends an error envelope whose status follows the error kind.
func RespondWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Server error"

	if appErr, ok := apperrors.As(err); ok {
		status = appErr.StatusCode()
		message = appErr.Message
		if appErr.Kind == apperrors.KindRetryable {
			c.Header("Retry-After", "1")
		}
	}

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}

	body := gin.H{
		"success": false,
		"message": message,
	}
	if exposeDetails.Load() && err != nil {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	RespondWithError(c, err)
	c.Abort()
}
