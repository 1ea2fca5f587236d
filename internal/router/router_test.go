package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/slotbook/booking-api/config"
	"github.com/slotbook/booking-api/internal/repository/memory"
	authsvc "github.com/slotbook/booking-api/internal/service/auth"
	"github.com/slotbook/booking-api/internal/service/booking"
	"github.com/slotbook/booking-api/internal/service/catalog"
	"github.com/slotbook/booking-api/internal/service/event"
	"github.com/slotbook/booking-api/internal/service/slot"
	"github.com/slotbook/booking-api/pkg/auth"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/metrics"
	"github.com/slotbook/booking-api/pkg/security"
)

type client struct {
	t      *testing.T
	engine *gin.Engine
}

func newClient(t *testing.T) *client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:     config.ServerConfig{BasePath: "/api", RequestTimeout: 5 * time.Second},
		Database:   config.DatabaseConfig{Driver: config.DriverMemory, Name: "booking"},
		Monitoring: config.MonitoringConfig{MetricsPath: "/metrics"},
	}
	store := memory.NewStore()
	log := logger.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)

	slots := slot.NewService(store.Slots(), store.Services(), log)
	r, err := NewRouter(Deps{
		Config: cfg,
		System: store.System(),
		Auth: authsvc.NewService(store.Users(), auth.NewJWTService("test-secret", "booking-api", time.Hour),
			security.NewBcryptHasher(bcrypt.MinCost), log),
		Catalog:  catalog.NewService(store.Services(), log),
		Slots:    slots,
		Bookings: booking.NewService(store, store.Bookings(), slots, event.NewEventService(store.Outbox(), log), m, log),
		Metrics:  m,
		Gatherer: reg,
	})
	require.NoError(t, err)
	return &client{t: t, engine: r.Engine()}
}

func (c *client) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	c.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (c *client) register(name, email, role string) string {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "pa55word", "role": role,
	})
	require.Equal(c.t, http.StatusCreated, code, body)
	return body["token"].(string)
}

func id(t *testing.T, body map[string]interface{}, key string) int64 {
	t.Helper()
	obj, ok := body[key].(map[string]interface{})
	require.True(t, ok, "missing %s in %v", key, body)
	return int64(obj["id"].(float64))
}

func TestBookingFlow(t *testing.T) {
	c := newClient(t)
	provider := c.register("Pat", "pat@example.com", "provider")
	customer := c.register("Cy", "cy@example.com", "")
	rival := c.register("Olu", "olu@example.com", "customer")

	code, body := c.do(http.MethodPost, "/api/services", provider, gin.H{"name": "Haircut", "price": 25, "description": "Trim"})
	require.Equal(t, http.StatusCreated, code, body)
	serviceID := id(t, body, "service")

	code, body = c.do(http.MethodPost, "/api/availability", provider, gin.H{
		"service_id": serviceID, "date": "2099-03-01", "start_time": "09:00", "end_time": "10:00",
	})
	require.Equal(t, http.StatusCreated, code, body)
	slotA := id(t, body, "availability")

	code, body = c.do(http.MethodPost, "/api/availability", provider, gin.H{
		"service_id": serviceID, "date": "2099-03-02", "start_time": "11:00", "end_time": "12:00",
	})
	require.Equal(t, http.StatusCreated, code, body)
	slotB := id(t, body, "availability")

	code, body = c.do(http.MethodGet, "/api/bookings/available?date=2099-03-01", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = c.do(http.MethodPost, "/api/bookings", customer, gin.H{"availability_id": slotA})
	require.Equal(t, http.StatusCreated, code, body)
	assert.Equal(t, true, body["success"])
	bookingObj := body["booking"].(map[string]interface{})
	assert.Equal(t, "confirmed", bookingObj["status"])
	assert.Equal(t, "2099-03-01", bookingObj["date"])
	bookingID := int64(bookingObj["id"].(float64))
	assert.Equal(t, "09:00:00", body["slot"].(map[string]interface{})["start_time"])

	code, body = c.do(http.MethodPost, "/api/bookings", rival, gin.H{"availability_id": slotA})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Slot is not available or does not exist", body["message"])

	code, body = c.do(http.MethodGet, "/api/bookings/available", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"], "only slot B is still open")

	code, body = c.do(http.MethodGet, "/api/bookings/my-bookings", customer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, body = c.do(http.MethodGet, "/api/bookings/provider-appointments", provider, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])

	code, _ = c.do(http.MethodPut, "/api/bookings/reschedule", rival, gin.H{"booking_id": bookingID, "new_availability_id": slotB})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = c.do(http.MethodPut, "/api/bookings/reschedule", customer, gin.H{"booking_id": bookingID, "new_availability_id": slotB})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "2099-03-01", body["old_slot"].(map[string]interface{})["date"])
	assert.Equal(t, float64(slotB), body["new_slot"].(map[string]interface{})["id"])

	code, body = c.do(http.MethodDelete, "/api/bookings/cancel", customer, gin.H{"booking_id": bookingID})
	require.Equal(t, http.StatusOK, code, body)
	cancelled := body["cancelledBooking"].(map[string]interface{})
	assert.Equal(t, float64(bookingID), cancelled["id"])
	assert.Equal(t, "2099-03-02", cancelled["date"])

	code, body = c.do(http.MethodGet, "/api/bookings/available", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])

	code, _ = c.do(http.MethodDelete, "/api/bookings/cancel", customer, gin.H{"booking_id": bookingID})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAuthRoutes(t *testing.T) {
	c := newClient(t)
	c.register("Pat", "pat@example.com", "provider")

	code, body := c.do(http.MethodPost, "/api/auth/register", "", gin.H{"name": "Pat", "email": "pat@example.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User with this email already exists", body["message"])

	code, body = c.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "new@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Name, email, and password are required", body["message"])

	code, _ = c.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "pat@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = c.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "pat@example.com", "password": "pa55word"})
	require.Equal(t, http.StatusOK, code)
	token := body["token"].(string)
	assert.Equal(t, "provider", body["user"].(map[string]interface{})["role"])
	assert.NotContains(t, body["user"], "password_hash")

	code, body = c.do(http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pat@example.com", body["user"].(map[string]interface{})["email"])

	code, _ = c.do(http.MethodGet, "/api/auth/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = c.do(http.MethodGet, "/api/auth/profile", "garbage", nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRoleGates(t *testing.T) {
	c := newClient(t)
	provider := c.register("Pat", "pat@example.com", "provider")
	customer := c.register("Cy", "cy@example.com", "customer")

	code, body := c.do(http.MethodPost, "/api/services", customer, gin.H{"name": "X", "price": 1})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied. Required role: provider", body["message"])

	code, _ = c.do(http.MethodPost, "/api/bookings", provider, gin.H{"availability_id": 1})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = c.do(http.MethodGet, "/api/bookings/provider-appointments", customer, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = c.do(http.MethodGet, "/api/availability/provider", customer, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRequestValidation(t *testing.T) {
	c := newClient(t)
	provider := c.register("Pat", "pat@example.com", "provider")
	customer := c.register("Cy", "cy@example.com", "customer")

	code, body := c.do(http.MethodGet, "/api/bookings/available?date=tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "date must be in YYYY-MM-DD format", body["message"])

	code, _ = c.do(http.MethodGet, "/api/bookings/available?service_id=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = c.do(http.MethodPost, "/api/availability", provider, gin.H{
		"service_id": 1, "date": "2099-01-01", "start_time": "9 o'clock", "end_time": "10:00",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "start_time must be in HH:MM format", body["message"])

	code, body = c.do(http.MethodPost, "/api/bookings", customer, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Availability ID is required", body["message"])

	code, _ = c.do(http.MethodPost, "/api/bookings", customer, gin.H{"availability_id": "one"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = c.do(http.MethodDelete, "/api/bookings/cancel", customer, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Booking ID is required", body["message"])

	code, body = c.do(http.MethodPost, "/api/availability", provider, gin.H{
		"service_id": 99, "date": "2099-01-01", "start_time": "09:00", "end_time": "10:00",
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Service not found or you do not own this service", body["message"])
}

func TestSystemRoutes(t *testing.T) {
	c := newClient(t)

	code, body := c.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "running", body["status"])

	code, body = c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", body["database"])

	code, _ = c.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, body = c.do(http.MethodGet, "/api/tables", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(6), body["count"])

	code, body = c.do(http.MethodGet, "/api/nothing-here", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, false, body["success"])

	c.do(http.MethodGet, "/api/services", "", nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}
