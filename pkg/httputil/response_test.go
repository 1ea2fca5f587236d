package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/slotbook/booking-api/pkg/errors"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRespondPlacesPayloadAtTopLevel(t *testing.T) {
	c, w := newContext()

	Respond(c, http.StatusCreated, "Service created successfully", gin.H{"service": gin.H{"id": 1}})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Service created successfully", body["message"])
	assert.NotNil(t, body["service"])
}

func TestRespondWithListNilSlice(t *testing.T) {
	c, w := newContext()

	RespondWithList[int](c, "slots", nil)

	body := decode(t, w)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, []interface{}{}, body["slots"])
}

func TestRespondWithErrorKinds(t *testing.T) {
	ExposeErrorDetails(false)

	c, w := newContext()
	RespondWithError(c, apperrors.NotFound("Booking not found"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Booking not found", body["message"])
	assert.NotContains(t, body, "error")

	c, w = newContext()
	RespondWithError(c, errors.New("pq: relation does not exist"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Server error", decode(t, w)["message"])

	c, w = newContext()
	RespondWithError(c, apperrors.Retryable("Please retry", errors.New("deadlock detected")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRespondWithErrorExposesDetails(t *testing.T) {
	ExposeErrorDetails(true)
	defer ExposeErrorDetails(false)

	c, w := newContext()
	RespondWithError(c, apperrors.Internal("Booking failed", errors.New("connection refused")))

	body := decode(t, w)
	assert.Equal(t, "Booking failed", body["message"])
	assert.Equal(t, "Booking failed: connection refused", body["error"])
}
