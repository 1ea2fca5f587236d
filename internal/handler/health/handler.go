package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/pkg/httputil"
)

const pingTimeout = 2 * time.Second

type Handler struct {
	system   repository.SystemRepository
	driver   string
	database string
	basePath string
}

func NewHandler(system repository.SystemRepository, driver, database, basePath string) *Handler {
	return &Handler{
		system:   system,
		driver:   driver,
		database: database,
		basePath: basePath,
	}
}

// RegisterRoutes mounts the banner and probes on the engine root and the
// table listing under the API group.
func (h *Handler) RegisterRoutes(root gin.IRouter, api *gin.RouterGroup) {
	root.GET("/", h.Index)
	health := root.Group("/health")
	{
		health.GET("", h.Health)
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
	api.GET("/tables", h.Tables)
}

func (h *Handler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":  "Booking System API",
		"status":   "running",
		"database": h.driver,
		"endpoints": gin.H{
			"auth":         h.basePath + "/auth",
			"services":     h.basePath + "/services",
			"availability": h.basePath + "/availability",
			"bookings":     h.basePath + "/bookings",
			"health":       "/health",
			"tables":       h.basePath + "/tables",
			"metrics":      "/metrics",
			"dashboard":    "/dashboard",
		},
	})
}

// Health always answers 200 and reports whether the database responds.
func (h *Handler) Health(c *gin.Context) {
	status := "connected"
	if err := h.ping(c.Request.Context()); err != nil {
		status = "disconnected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"database":  status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"system":    h.driver,
	})
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if err := h.ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "Database connection failed",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) Tables(c *gin.Context) {
	tables, err := h.system.ListTables(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if tables == nil {
		tables = []string{}
	}
	httputil.RespondWithSuccess(c, "", gin.H{
		"database": h.database,
		"tables":   tables,
		"count":    len(tables),
	})
}

func (h *Handler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.system.Ping(ctx)
}
