package router

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slotbook/booking-api/config"
	authhandler "github.com/slotbook/booking-api/internal/handler/auth"
	"github.com/slotbook/booking-api/internal/handler/availability"
	bookinghandler "github.com/slotbook/booking-api/internal/handler/booking"
	cataloghandler "github.com/slotbook/booking-api/internal/handler/catalog"
	"github.com/slotbook/booking-api/internal/handler/health"
	"github.com/slotbook/booking-api/internal/middleware"
	"github.com/slotbook/booking-api/internal/repository"
	authsvc "github.com/slotbook/booking-api/internal/service/auth"
	"github.com/slotbook/booking-api/internal/service/booking"
	"github.com/slotbook/booking-api/internal/service/catalog"
	"github.com/slotbook/booking-api/internal/service/slot"
	"github.com/slotbook/booking-api/pkg/httputil"
	"github.com/slotbook/booking-api/pkg/metrics"
	"github.com/slotbook/booking-api/pkg/validator"
)

const defaultMetricsPath = "/metrics"

// Handler is implemented by every API handler group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup, *middleware.AuthMiddleware)
}

// Deps is everything the HTTP surface needs from the rest of the process.
type Deps struct {
	Config   *config.Config
	System   repository.SystemRepository
	Auth     *authsvc.Service
	Catalog  *catalog.Service
	Slots    *slot.Service
	Bookings *booking.Service
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	guard  *middleware.AuthMiddleware
	health *health.Handler
	groups []Handler
	deps   Deps
}

func NewRouter(deps Deps) (*Router, error) {
	if err := validator.Register(); err != nil {
		return nil, err
	}
	httputil.ExposeErrorDetails(deps.Config.Server.ExposeErrorDetails)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	r := &Router{
		engine: engine,
		cfg:    deps.Config,
		guard:  middleware.NewAuthMiddleware(deps.Auth),
		health: health.NewHandler(deps.System, deps.Config.Database.Driver, deps.Config.Database.Name, basePath(deps.Config)),
		groups: []Handler{
			authhandler.NewHandler(deps.Auth),
			cataloghandler.NewHandler(deps.Catalog),
			availability.NewHandler(deps.Slots),
			bookinghandler.NewHandler(deps.Bookings, deps.Slots),
		},
		deps: deps,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)
	if deps.Metrics != nil {
		engine.Use(middleware.Metrics(deps.Metrics))
	}
	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		cors.New(corsConfig(deps.Config.Security.AllowedOrigins)),
		middleware.SizeLimit(middleware.DefaultMaxBodySize),
		middleware.Timeout(deps.Config.Server.RequestTimeout),
	)
	if deps.Config.RateLimit.Enabled {
		engine.Use(middleware.NewRateLimiter(deps.Config.RateLimit).RateLimit())
	}

	r.setup()
	return r, nil
}

func (r *Router) setup() {
	api := r.engine.Group(basePath(r.cfg))

	r.health.RegisterRoutes(r.engine, api)
	for _, h := range r.groups {
		h.RegisterRoutes(api, r.guard)
	}

	if r.deps.Gatherer != nil {
		path := r.cfg.Monitoring.MetricsPath
		if path == "" {
			path = defaultMetricsPath
		}
		r.engine.GET(path, gin.WrapH(promhttp.HandlerFor(r.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if dir := r.cfg.Server.StaticDir; dir != "" {
		r.engine.Static("/dashboard", dir)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Route not found"})
	})
	r.engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "message": "Method not allowed"})
	})
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func basePath(cfg *config.Config) string {
	p := strings.TrimRight(cfg.Server.BasePath, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderXRequestID},
		ExposeHeaders: []string{"Content-Length", middleware.HeaderXRequestID, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
