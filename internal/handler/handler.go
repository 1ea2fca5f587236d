// Package handler holds the helpers shared by the HTTP handlers in its
// subpackages.
package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/middleware"
	"github.com/slotbook/booking-api/internal/model"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/httputil"
	"github.com/slotbook/booking-api/pkg/validator"
)

// BindJSON decodes the request body into obj and writes a 400 envelope on
// failure. An empty body leaves obj zeroed so the service can report which
// fields are missing.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		httputil.RespondWithError(c, apperrors.New(apperrors.KindValidation, validator.Describe(err), err))
		return false
	}
	return true
}

// Identity returns the caller stored by the auth middleware. Only call it on
// routes behind Authenticate.
func Identity(c *gin.Context) model.Identity {
	identity, _ := middleware.IdentityFrom(c)
	return identity
}
