package booking

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/handler"
	"github.com/slotbook/booking-api/internal/middleware"
	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/service/booking"
	"github.com/slotbook/booking-api/internal/service/slot"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/httputil"
)

type Handler struct {
	bookings *booking.Service
	slots    *slot.Service
}

func NewHandler(bookings *booking.Service, slots *slot.Service) *Handler {
	return &Handler{bookings: bookings, slots: slots}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard *middleware.AuthMiddleware) {
	bookings := r.Group("/bookings")
	bookings.GET("/available", h.ListAvailable)

	authed := bookings.Group("", guard.Authenticate())
	{
		authed.POST("", guard.RequireRole(model.RoleCustomer), h.Book)
		authed.GET("/my-bookings", h.ListMine)
		authed.GET("/provider-appointments", guard.RequireRole(model.RoleProvider), h.ListAppointments)
		authed.DELETE("/cancel", h.Cancel)
		authed.PUT("/reschedule", h.Reschedule)
	}
}

// ListAvailable serves the public slot listing, optionally filtered by
// service_id and date query parameters.
func (h *Handler) ListAvailable(c *gin.Context) {
	filter, err := parseSlotFilter(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	slots, err := h.slots.ListPublicSlots(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "slots", slots)
}

func parseSlotFilter(c *gin.Context) (model.SlotFilter, error) {
	var filter model.SlotFilter

	if raw := strings.TrimSpace(c.Query("service_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return filter, apperrors.Validation("service_id must be a positive integer")
		}
		filter.ServiceID = &id
	}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		date, err := model.ParseDate(raw)
		if err != nil {
			return filter, apperrors.Validation("date must be in YYYY-MM-DD format")
		}
		filter.Date = &date
	}
	return filter, nil
}

func (h *Handler) Book(c *gin.Context) {
	var req model.BookRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.bookings.Book(c.Request.Context(), handler.Identity(c), req.AvailabilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.Respond(c, http.StatusCreated, "Booking confirmed successfully", gin.H{
		"booking": result.Booking,
		"slot":    result.Slot,
	})
}

func (h *Handler) ListMine(c *gin.Context) {
	bookings, err := h.bookings.ListCustomerBookings(c.Request.Context(), handler.Identity(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "bookings", bookings)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	appointments, err := h.bookings.ListProviderAppointments(c.Request.Context(), handler.Identity(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithList(c, "appointments", appointments)
}

func (h *Handler) Cancel(c *gin.Context) {
	var req model.CancelRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	cancelled, err := h.bookings.Cancel(c.Request.Context(), handler.Identity(c), req.BookingID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Booking cancelled successfully", gin.H{"cancelledBooking": cancelled})
}

func (h *Handler) Reschedule(c *gin.Context) {
	var req model.RescheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	result, err := h.bookings.Reschedule(c.Request.Context(), handler.Identity(c), req.BookingID, req.NewAvailabilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, "Booking rescheduled successfully", gin.H{
		"booking":  result.Booking,
		"old_slot": result.OldSlot,
		"new_slot": result.NewSlot,
	})
}
