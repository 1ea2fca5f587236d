package availability

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/handler"
	"github.com/slotbook/booking-api/internal/middleware"
	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/service/slot"
	"github.com/slotbook/booking-api/pkg/httputil"
)

type Handler struct {
	slots *slot.Service
}

func NewHandler(slots *slot.Service) *Handler {
	return &Handler{slots: slots}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard *middleware.AuthMiddleware) {
	availability := r.Group("/availability", guard.Authenticate(), guard.RequireRole(model.RoleProvider))
	{
		availability.POST("", h.Publish)
		availability.GET("/provider", h.ListOwn)
	}
}

func (h *Handler) Publish(c *gin.Context) {
	var req model.PublishSlotRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	sl, err := h.slots.PublishSlot(c.Request.Context(), handler.Identity(c), req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.Respond(c, http.StatusCreated, "Availability slot added successfully", gin.H{"availability": sl})
}

func (h *Handler) ListOwn(c *gin.Context) {
	slots, err := h.slots.ListOwnSlots(c.Request.Context(), handler.Identity(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "availability", slots)
}
