package catalog

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/handler"
	"github.com/slotbook/booking-api/internal/middleware"
	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/service/catalog"
	"github.com/slotbook/booking-api/pkg/httputil"
)

type Handler struct {
	svc *catalog.Service
}

func NewHandler(svc *catalog.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard *middleware.AuthMiddleware) {
	services := r.Group("/services")
	services.GET("", h.List)

	provider := services.Group("", guard.Authenticate(), guard.RequireRole(model.RoleProvider))
	{
		provider.POST("", h.Create)
		provider.GET("/provider", h.ListOwn)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateServiceRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	svc, err := h.svc.CreateService(c.Request.Context(), handler.Identity(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.Respond(c, http.StatusCreated, "Service created successfully", gin.H{"service": svc})
}

func (h *Handler) List(c *gin.Context) {
	services, err := h.svc.ListServices(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "services", services)
}

func (h *Handler) ListOwn(c *gin.Context) {
	services, err := h.svc.ListOwnServices(c.Request.Context(), handler.Identity(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "services", services)
}
