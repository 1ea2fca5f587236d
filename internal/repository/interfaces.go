package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/booking-api/internal/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrRetryable marks failures where repeating the whole transaction may succeed:
	// deadlocks, serialization failures, lock timeouts and lost connections.
	ErrRetryable = errors.New("transient storage failure")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		GetByID(ctx context.Context, id int64) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id int64) (*model.Service, error)
		List(ctx context.Context) ([]*model.ServiceView, error)
		ListByProvider(ctx context.Context, providerID int64) ([]*model.ServiceView, error)
	}

	SlotRepository interface {
		Create(ctx context.Context, slot *model.Slot) error
		Get(ctx context.Context, id int64) (*model.Slot, error)
		ListByProvider(ctx context.Context, providerID int64) ([]*model.ProviderSlotView, error)
		ListAvailable(ctx context.Context, filter model.SlotFilter) ([]*model.PublicSlotView, error)
	}

	BookingRepository interface {
		Get(ctx context.Context, id int64) (*model.Booking, error)
		ListByCustomer(ctx context.Context, customerID int64) ([]*model.CustomerBookingView, error)
		ListByProvider(ctx context.Context, providerID int64) ([]*model.AppointmentView, error)
	}

	OutboxRepository interface {
		// GetPendingEvents claims pending events, plus processing events last
		// touched before staleBefore whose relay died or was stopped mid-batch.
		GetPendingEvents(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error)
		MarkEventProcessed(ctx context.Context, id uuid.UUID) error
		MarkEventFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	SystemRepository interface {
		Ping(ctx context.Context) error
		ListTables(ctx context.Context) ([]string, error)
	}

	// SlotTx is the slot half of a transaction. Lock* methods hold the row
	// until the transaction ends.
	SlotTx interface {
		LockSlot(ctx context.Context, id int64) (*model.Slot, error)
		// FindBookedSlotID resolves the slot of a booking that predates the
		// availability_id column, by service and date.
		FindBookedSlotID(ctx context.Context, serviceID int64, date model.Date) (int64, error)
		SetSlotAvailable(ctx context.Context, id int64, available bool) error
	}

	BookingTx interface {
		LockCustomerBooking(ctx context.Context, id, customerID int64) (*model.Booking, error)
		CreateBooking(ctx context.Context, booking *model.Booking) error
		MoveBooking(ctx context.Context, booking *model.Booking) error
		DeleteBooking(ctx context.Context, id int64) error
	}

	OutboxTx interface {
		AddOutboxEvent(ctx context.Context, event *model.OutboxEvent) error
	}

	// Tx is a unit of work spanning slots, bookings and the outbox.
	Tx interface {
		SlotTx
		BookingTx
		OutboxTx
	}

	// Transactor runs fn in a transaction. A nil return commits; any error or
	// panic rolls back and the original error is returned.
	Transactor interface {
		WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	}

	// Store bundles every repository over one backing database.
	Store interface {
		Transactor
		Users() UserRepository
		Services() ServiceRepository
		Slots() SlotRepository
		Bookings() BookingRepository
		Outbox() OutboxRepository
		System() SystemRepository
		Close() error
	}
)
