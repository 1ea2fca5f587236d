package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

// tx buffers its writes and applies them to the store on commit. Reads inside
// the transaction see the store overlaid with its own pending writes.
type tx struct {
	s    *Store
	held []string

	slots    map[int64]bool           // pending is_available
	bookings map[int64]*model.Booking // pending rows; nil marks a delete
	outbox   []*model.OutboxEvent

	done bool
}

var _ repository.Tx = (*tx)(nil)

// WithTx runs fn holding whatever row locks it takes until commit or rollback.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %v", repository.ErrRetryable, err)
	}

	t := &tx{
		s:        s,
		slots:    make(map[int64]bool),
		bookings: make(map[int64]*model.Booking),
	}
	defer func() {
		if p := recover(); p != nil {
			t.release()
			panic(p)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.release()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return fmt.Errorf("failed to commit transaction: %w: %v", repository.ErrRetryable, err)
	}
	t.commit()
	return nil
}

// commit publishes every pending write at once, then drops the row locks.
func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	for id, available := range t.slots {
		if sl, ok := s.slots[id]; ok {
			sl.IsAvailable = available
		}
	}
	for id, b := range t.bookings {
		if b == nil {
			delete(s.bookings, id)
			continue
		}
		s.bookings[id] = b
	}
	for _, e := range t.outbox {
		s.outbox[e.ID] = e
	}
	s.mu.Unlock()
	t.release()
}

func (t *tx) release() {
	if t.done {
		return
	}
	t.done = true
	t.slots, t.bookings, t.outbox = nil, nil, nil
	for _, key := range t.held {
		t.s.unlockRow(key)
	}
	t.held = nil
}

func (t *tx) lock(ctx context.Context, key string) error {
	for _, k := range t.held {
		if k == key {
			return nil
		}
	}
	if err := t.s.lockRow(ctx, key); err != nil {
		return err
	}
	t.held = append(t.held, key)
	return nil
}

// slot returns the slot as this transaction sees it. Caller holds s.mu.
func (t *tx) slot(id int64) (*model.Slot, bool) {
	sl, ok := t.s.slots[id]
	if !ok {
		return nil, false
	}
	cp := *sl
	if available, ok := t.slots[id]; ok {
		cp.IsAvailable = available
	}
	return &cp, true
}

// booking returns the booking as this transaction sees it. Caller holds s.mu.
func (t *tx) booking(id int64) (*model.Booking, bool) {
	b, pending := t.bookings[id]
	if !pending {
		b = t.s.bookings[id]
	}
	if b == nil {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// slotHolder returns the id of the booking other than self whose
// availability_id is slotID, or 0. Caller holds s.mu.
func (t *tx) slotHolder(slotID, self int64) int64 {
	for id, b := range t.bookings {
		if id != self && b != nil && b.AvailabilityID != nil && *b.AvailabilityID == slotID {
			return id
		}
	}
	for id, b := range t.s.bookings {
		if _, pending := t.bookings[id]; pending || id == self {
			continue
		}
		if b.AvailabilityID != nil && *b.AvailabilityID == slotID {
			return id
		}
	}
	return 0
}

// claimedSlots is the transaction's view of Store.claimedSlots. Caller holds s.mu.
func (t *tx) claimedSlots() map[int64]bool {
	claimed := make(map[int64]bool)
	for id, b := range t.s.bookings {
		if _, pending := t.bookings[id]; pending {
			continue
		}
		if b.AvailabilityID != nil {
			claimed[*b.AvailabilityID] = true
		}
	}
	for _, b := range t.bookings {
		if b != nil && b.AvailabilityID != nil {
			claimed[*b.AvailabilityID] = true
		}
	}
	return claimed
}

func (t *tx) LockSlot(ctx context.Context, id int64) (*model.Slot, error) {
	if err := t.lock(ctx, slotKey(id)); err != nil {
		return nil, fmt.Errorf("failed to lock slot %d: %w", id, err)
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sl, ok := t.slot(id)
	if !ok {
		return nil, fmt.Errorf("failed to lock slot %d: %w", id, repository.ErrNotFound)
	}
	return sl, nil
}

func (t *tx) FindBookedSlotID(_ context.Context, serviceID int64, date model.Date) (int64, error) {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sl := legacySlot(t.s.slots, t.claimedSlots(), serviceID, date, func(sl *model.Slot) bool {
		if available, ok := t.slots[sl.ID]; ok {
			return available
		}
		return sl.IsAvailable
	})
	if sl == nil {
		return 0, fmt.Errorf("failed to find booked slot: %w", repository.ErrNotFound)
	}
	return sl.ID, nil
}

func (t *tx) SetSlotAvailable(_ context.Context, id int64, available bool) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if _, ok := t.s.slots[id]; !ok {
		return fmt.Errorf("failed to update slot %d: %w", id, repository.ErrNotFound)
	}
	t.slots[id] = available
	return nil
}

func (t *tx) LockCustomerBooking(ctx context.Context, id, customerID int64) (*model.Booking, error) {
	if err := t.lock(ctx, bookingKey(id)); err != nil {
		return nil, fmt.Errorf("failed to lock booking %d: %w", id, err)
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.booking(id)
	if !ok || b.CustomerID != customerID {
		return nil, fmt.Errorf("failed to lock booking %d: %w", id, repository.ErrNotFound)
	}
	return b, nil
}

func (t *tx) CreateBooking(_ context.Context, booking *model.Booking) error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if booking.AvailabilityID != nil && t.slotHolder(*booking.AvailabilityID, 0) != 0 {
		return fmt.Errorf("failed to create booking: %w: uq_bookings_availability", repository.ErrDuplicate)
	}
	if booking.Status == "" {
		booking.Status = model.BookingStatusConfirmed
	}
	// ids come from a sequence, so a rolled back insert leaves a gap
	s.bookingSeq++
	booking.ID = s.bookingSeq
	booking.CreatedAt = s.now()
	booking.UpdatedAt = booking.CreatedAt

	cp := *booking
	t.bookings[cp.ID] = &cp
	return nil
}

func (t *tx) MoveBooking(_ context.Context, booking *model.Booking) error {
	s := t.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := t.booking(booking.ID)
	if !ok {
		return fmt.Errorf("failed to move booking %d: %w", booking.ID, repository.ErrNotFound)
	}
	if booking.AvailabilityID != nil && t.slotHolder(*booking.AvailabilityID, booking.ID) != 0 {
		return fmt.Errorf("failed to move booking: %w: uq_bookings_availability", repository.ErrDuplicate)
	}
	stored.Date = booking.Date
	stored.AvailabilityID = booking.AvailabilityID
	stored.UpdatedAt = s.now()
	booking.UpdatedAt = stored.UpdatedAt
	t.bookings[stored.ID] = stored
	return nil
}

func (t *tx) DeleteBooking(_ context.Context, id int64) error {
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	if _, ok := t.booking(id); !ok {
		return fmt.Errorf("failed to delete booking %d: %w", id, repository.ErrNotFound)
	}
	t.bookings[id] = nil
	return nil
}

func (t *tx) AddOutboxEvent(_ context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	now := t.s.now()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now

	cp := *event
	t.outbox = append(t.outbox, &cp)
	return nil
}
