package slot

import (
	"context"
	"errors"
	"strings"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/service"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
)

const (
	MsgSlotUnavailable    = "Slot is not available or does not exist"
	MsgNewSlotUnavailable = "New time slot is not available or does not exist"
	MsgDifferentService   = "New time slot must be for the same service"
)

// Service is the ledger of availability slots. Reserve, Release and the lock
// helpers run inside a caller's transaction.
type Service struct {
	slots    repository.SlotRepository
	services repository.ServiceRepository
	log      *logger.Logger
}

func NewService(slots repository.SlotRepository, services repository.ServiceRepository, log *logger.Logger) *Service {
	return &Service{
		slots:    slots,
		services: services,
		log:      log,
	}
}

func (s *Service) PublishSlot(ctx context.Context, identity model.Identity, req model.PublishSlotRequest) (*model.Slot, error) {
	if !identity.IsProvider() {
		return nil, apperrors.Forbidden("Only providers can set availability")
	}
	if req.ServiceID <= 0 || strings.TrimSpace(req.Date) == "" ||
		strings.TrimSpace(req.StartTime) == "" || strings.TrimSpace(req.EndTime) == "" {
		return nil, apperrors.Validation("Service ID, date, start time, and end time are required")
	}

	date, err := model.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.Validation("Date must be in YYYY-MM-DD format")
	}
	start, startAt, err := model.ParseClock(req.StartTime)
	if err != nil {
		return nil, apperrors.Validation("Start time must be in HH:MM format")
	}
	end, endAt, err := model.ParseClock(req.EndTime)
	if err != nil {
		return nil, apperrors.Validation("End time must be in HH:MM format")
	}
	if !endAt.After(startAt) {
		return nil, apperrors.Validation("End time must be after start time")
	}

	svc, err := s.services.Get(ctx, req.ServiceID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, service.StoreError("Server error", err)
	}
	if svc == nil || svc.ProviderID != identity.UserID {
		return nil, apperrors.NotFound("Service not found or you do not own this service")
	}

	available := true
	if req.IsAvailable != nil {
		available = *req.IsAvailable
	}

	slot := &model.Slot{
		ServiceID:   svc.ID,
		ProviderID:  identity.UserID,
		Date:        date,
		StartTime:   start,
		EndTime:     end,
		IsAvailable: available,
	}
	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, service.StoreError("Server error", err)
	}

	s.log.Info("slot published", "slot_id", slot.ID, "service_id", slot.ServiceID, "date", slot.Date.String())
	return slot, nil
}

func (s *Service) ListOwnSlots(ctx context.Context, identity model.Identity) ([]*model.ProviderSlotView, error) {
	if !identity.IsProvider() {
		return nil, apperrors.Forbidden("Only providers can view their availability")
	}
	slots, err := s.slots.ListByProvider(ctx, identity.UserID)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return slots, nil
}

func (s *Service) ListPublicSlots(ctx context.Context, filter model.SlotFilter) ([]*model.PublicSlotView, error) {
	slots, err := s.slots.ListAvailable(ctx, filter)
	if err != nil {
		return nil, service.StoreError("Server error", err)
	}
	return slots, nil
}

// Reserve locks the slot and flips it to unavailable. A missing or already
// taken slot is Unavailable.
func (s *Service) Reserve(ctx context.Context, tx repository.SlotTx, slotID int64) (*model.Slot, error) {
	slot, err := s.lockAvailable(ctx, tx, slotID, MsgSlotUnavailable)
	if err != nil {
		return nil, err
	}
	if err := tx.SetSlotAvailable(ctx, slot.ID, false); err != nil {
		return nil, service.StoreError("Booking failed", err)
	}
	slot.IsAvailable = false
	return slot, nil
}

// Release marks the slot available again. Releasing a free slot is a no-op.
func (s *Service) Release(ctx context.Context, tx repository.SlotTx, slotID int64) error {
	if err := tx.SetSlotAvailable(ctx, slotID, true); err != nil {
		return service.StoreError("Server error", err)
	}
	return nil
}

// ReleaseBookedSlot locks and releases the slot a booking occupies. A booking
// whose slot cannot be found is logged and otherwise ignored.
func (s *Service) ReleaseBookedSlot(ctx context.Context, tx repository.SlotTx, booking *model.Booking) (*int64, error) {
	slotID, err := s.bookedSlotID(ctx, tx, booking)
	if err != nil || slotID == 0 {
		return nil, err
	}
	if _, err := tx.LockSlot(ctx, slotID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("booked slot vanished", "booking_id", booking.ID, "slot_id", slotID)
			return nil, nil
		}
		return nil, service.StoreError("Server error", err)
	}
	if err := s.Release(ctx, tx, slotID); err != nil {
		return nil, err
	}
	return &slotID, nil
}

// LockForReschedule locks the target slot and the booking's current slot in
// ascending id order. oldSlot is nil when the current slot cannot be found.
func (s *Service) LockForReschedule(ctx context.Context, tx repository.SlotTx, booking *model.Booking, newSlotID int64) (newSlot, oldSlot *model.Slot, err error) {
	oldID, err := s.bookedSlotID(ctx, tx, booking)
	if err != nil {
		return nil, nil, err
	}

	if oldID != 0 && oldID < newSlotID {
		if oldSlot, err = s.lockTolerant(ctx, tx, booking, oldID); err != nil {
			return nil, nil, err
		}
	}

	newSlot, err = s.lockAvailable(ctx, tx, newSlotID, MsgNewSlotUnavailable)
	if err != nil {
		return nil, nil, err
	}
	if newSlot.ServiceID != booking.ServiceID {
		return nil, nil, apperrors.Validation(MsgDifferentService)
	}

	if oldID > newSlotID {
		if oldSlot, err = s.lockTolerant(ctx, tx, booking, oldID); err != nil {
			return nil, nil, err
		}
	}
	return newSlot, oldSlot, nil
}

func (s *Service) lockAvailable(ctx context.Context, tx repository.SlotTx, slotID int64, unavailableMsg string) (*model.Slot, error) {
	if slotID <= 0 {
		return nil, apperrors.Unavailable(unavailableMsg)
	}
	slot, err := tx.LockSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unavailable(unavailableMsg)
		}
		return nil, service.StoreError("Server error", err)
	}
	if !slot.IsAvailable {
		return nil, apperrors.Unavailable(unavailableMsg)
	}
	return slot, nil
}

func (s *Service) lockTolerant(ctx context.Context, tx repository.SlotTx, booking *model.Booking, slotID int64) (*model.Slot, error) {
	slot, err := tx.LockSlot(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("booked slot vanished", "booking_id", booking.ID, "slot_id", slotID)
			return nil, nil
		}
		return nil, service.StoreError("Server error", err)
	}
	return slot, nil
}

// bookedSlotID returns 0 when the booking's slot cannot be resolved.
func (s *Service) bookedSlotID(ctx context.Context, tx repository.SlotTx, booking *model.Booking) (int64, error) {
	if booking.AvailabilityID != nil {
		return *booking.AvailabilityID, nil
	}
	id, err := tx.FindBookedSlotID(ctx, booking.ServiceID, booking.Date)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("no slot found for legacy booking", "booking_id", booking.ID,
				"service_id", booking.ServiceID, "date", booking.Date.String())
			return 0, nil
		}
		return 0, service.StoreError("Server error", err)
	}
	return id, nil
}
