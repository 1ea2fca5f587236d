package booking

import (
	"context"
	"errors"
	"time"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/service"
	"github.com/slotbook/booking-api/internal/service/event"
	"github.com/slotbook/booking-api/internal/service/slot"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/metrics"
)

const (
	opBook       = "book"
	opCancel     = "cancel"
	opReschedule = "reschedule"
)

type Service struct {
	tx       repository.Transactor
	bookings repository.BookingRepository
	slots    *slot.Service
	events   *event.EventService
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time
}

func NewService(tx repository.Transactor, bookings repository.BookingRepository, slots *slot.Service,
	events *event.EventService, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		tx:       tx,
		bookings: bookings,
		slots:    slots,
		events:   events,
		metrics:  m,
		log:      log,
		now:      time.Now,
	}
}

// Book reserves the slot and records a confirmed booking in one transaction.
// Of N concurrent calls for one slot exactly one succeeds.
func (s *Service) Book(ctx context.Context, identity model.Identity, availabilityID int64) (*model.BookResult, error) {
	if !identity.IsCustomer() {
		return nil, apperrors.Forbidden("Access denied. Required role: customer")
	}
	if availabilityID <= 0 {
		return nil, apperrors.Validation("Availability ID is required")
	}

	var result *model.BookResult
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		reserved, err := s.slots.Reserve(ctx, tx, availabilityID)
		if err != nil {
			return err
		}

		booking := &model.Booking{
			CustomerID:     identity.UserID,
			ServiceID:      reserved.ServiceID,
			AvailabilityID: &reserved.ID,
			Date:           reserved.Date,
			Status:         model.BookingStatusConfirmed,
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Unavailable(slot.MsgSlotUnavailable)
			}
			return service.StoreError("Booking failed", err)
		}

		if err := s.events.Emit(ctx, tx, model.EventBookingCreated, model.BookingEvent{
			BookingID:      booking.ID,
			CustomerID:     booking.CustomerID,
			ServiceID:      booking.ServiceID,
			AvailabilityID: booking.AvailabilityID,
			Date:           booking.Date,
		}); err != nil {
			return service.StoreError("Booking failed", err)
		}

		result = &model.BookResult{Booking: booking, Slot: reserved.Summary()}
		return nil
	})
	if err != nil {
		err = service.StoreError("Booking failed", err)
		s.observe(opBook, err)
		return nil, err
	}

	s.observe(opBook, nil)
	s.log.Info("booking confirmed", "booking_id", result.Booking.ID, "slot_id", availabilityID, "customer_id", identity.UserID)
	return result, nil
}

// Cancel deletes the caller's booking and frees its slot.
func (s *Service) Cancel(ctx context.Context, identity model.Identity, bookingID int64) (*model.CancelledBooking, error) {
	if bookingID <= 0 {
		return nil, apperrors.Validation("Booking ID is required")
	}

	var cancelled *model.CancelledBooking
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		booking, err := s.lockOwnBooking(ctx, tx, identity, bookingID,
			"Booking not found or you do not have permission to cancel it")
		if err != nil {
			return err
		}
		if booking.Date.Before(s.today()) {
			return apperrors.InvalidState("Cannot cancel past bookings")
		}

		releasedID, err := s.slots.ReleaseBookedSlot(ctx, tx, booking)
		if err != nil {
			return err
		}

		if err := tx.DeleteBooking(ctx, booking.ID); err != nil {
			return service.StoreError("Server error during cancellation", err)
		}

		slotRef := booking.AvailabilityID
		if slotRef == nil {
			slotRef = releasedID
		}
		if err := s.events.Emit(ctx, tx, model.EventBookingCancelled, model.BookingEvent{
			BookingID:      booking.ID,
			CustomerID:     booking.CustomerID,
			ServiceID:      booking.ServiceID,
			AvailabilityID: slotRef,
			Date:           booking.Date,
		}); err != nil {
			return service.StoreError("Server error during cancellation", err)
		}

		cancelled = &model.CancelledBooking{
			ID:             booking.ID,
			ServiceID:      booking.ServiceID,
			Date:           booking.Date,
			AvailabilityID: slotRef,
		}
		return nil
	})
	if err != nil {
		err = service.StoreError("Server error during cancellation", err)
		s.observe(opCancel, err)
		return nil, err
	}

	s.observe(opCancel, nil)
	s.log.Info("booking cancelled", "booking_id", bookingID, "customer_id", identity.UserID)
	return cancelled, nil
}

// Reschedule moves the caller's booking to another slot of the same service.
// The old slot is freed and the new one taken atomically.
func (s *Service) Reschedule(ctx context.Context, identity model.Identity, bookingID, newAvailabilityID int64) (*model.RescheduleResult, error) {
	if bookingID <= 0 || newAvailabilityID <= 0 {
		return nil, apperrors.Validation("Booking ID and new availability ID are required")
	}

	var result *model.RescheduleResult
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		booking, err := s.lockOwnBooking(ctx, tx, identity, bookingID,
			"Booking not found or you do not have permission to reschedule it")
		if err != nil {
			return err
		}
		if booking.Date.Before(s.today()) {
			return apperrors.InvalidState("Cannot reschedule past bookings")
		}

		newSlot, oldSlot, err := s.slots.LockForReschedule(ctx, tx, booking, newAvailabilityID)
		if err != nil {
			return err
		}

		old := model.OldSlotRef{Date: booking.Date, AvailabilityID: booking.AvailabilityID}
		if oldSlot != nil {
			if err := s.slots.Release(ctx, tx, oldSlot.ID); err != nil {
				return err
			}
			old.AvailabilityID = &oldSlot.ID
		}

		booking.Date = newSlot.Date
		booking.AvailabilityID = &newSlot.ID
		if err := tx.MoveBooking(ctx, booking); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.Unavailable(slot.MsgNewSlotUnavailable)
			}
			return service.StoreError("Server error during rescheduling", err)
		}
		if err := tx.SetSlotAvailable(ctx, newSlot.ID, false); err != nil {
			return service.StoreError("Server error during rescheduling", err)
		}
		newSlot.IsAvailable = false

		if err := s.events.Emit(ctx, tx, model.EventBookingRescheduled, model.BookingEvent{
			BookingID:              booking.ID,
			CustomerID:             booking.CustomerID,
			ServiceID:              booking.ServiceID,
			AvailabilityID:         booking.AvailabilityID,
			PreviousAvailabilityID: old.AvailabilityID,
			Date:                   booking.Date,
		}); err != nil {
			return service.StoreError("Server error during rescheduling", err)
		}

		result = &model.RescheduleResult{
			Booking: booking,
			OldSlot: old,
			NewSlot: newSlot.Summary(),
		}
		return nil
	})
	if err != nil {
		err = service.StoreError("Server error during rescheduling", err)
		s.observe(opReschedule, err)
		return nil, err
	}

	s.observe(opReschedule, nil)
	s.log.Info("booking rescheduled", "booking_id", bookingID, "slot_id", newAvailabilityID)
	return result, nil
}

func (s *Service) ListCustomerBookings(ctx context.Context, identity model.Identity) ([]*model.CustomerBookingView, error) {
	bookings, err := s.bookings.ListByCustomer(ctx, identity.UserID)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return bookings, nil
}

func (s *Service) ListProviderAppointments(ctx context.Context, identity model.Identity) ([]*model.AppointmentView, error) {
	if !identity.IsProvider() {
		return nil, apperrors.Forbidden("Only providers can view appointments")
	}
	appointments, err := s.bookings.ListByProvider(ctx, identity.UserID)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return appointments, nil
}

func (s *Service) lockOwnBooking(ctx context.Context, tx repository.BookingTx, identity model.Identity, bookingID int64, notFoundMsg string) (*model.Booking, error) {
	booking, err := tx.LockCustomerBooking(ctx, bookingID, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound(notFoundMsg)
		}
		return nil, service.StoreError("Server error", err)
	}
	return booking, nil
}

func (s *Service) today() model.Date {
	return model.NewDate(s.now())
}

func (s *Service) observe(op string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveBooking(op, "success")
	case apperrors.Is(err, apperrors.KindRetryable):
		s.metrics.ObserveBooking(op, "retry")
	case apperrors.Is(err, apperrors.KindInternal):
		s.metrics.ObserveBooking(op, "error")
	default:
		s.metrics.ObserveBooking(op, "rejected")
	}
}
