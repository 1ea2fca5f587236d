// Package memory is an in-process repository.Store. Transactions take
// exclusive per-row locks the way SELECT ... FOR UPDATE does and buffer their
// writes until commit, so it can stand in for PostgreSQL in tests and demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	users     map[int64]*model.User
	emails    map[string]int64
	locations map[int64]*model.Location
	services  map[int64]*model.Service
	slots     map[int64]*model.Slot
	bookings  map[int64]*model.Booking
	outbox    map[uuid.UUID]*model.OutboxEvent

	userSeq, locationSeq, serviceSeq, slotSeq, bookingSeq int64

	locksMu sync.Mutex
	locks   map[string]chan struct{}

	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:     make(map[int64]*model.User),
		emails:    make(map[string]int64),
		locations: make(map[int64]*model.Location),
		services:  make(map[int64]*model.Service),
		slots:     make(map[int64]*model.Slot),
		bookings:  make(map[int64]*model.Booking),
		outbox:    make(map[uuid.UUID]*model.OutboxEvent),
		locks:     make(map[string]chan struct{}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() repository.UserRepository       { return userRepository{s} }
func (s *Store) Services() repository.ServiceRepository { return serviceRepository{s} }
func (s *Store) Slots() repository.SlotRepository       { return slotRepository{s} }
func (s *Store) Bookings() repository.BookingRepository { return bookingRepository{s} }
func (s *Store) Outbox() repository.OutboxRepository    { return outboxRepository{s} }
func (s *Store) System() repository.SystemRepository    { return systemRepository{s} }

func (s *Store) Close() error { return nil }

// AddLocation registers a location. Locations have no API of their own.
func (s *Store) AddLocation(name, address string) *model.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locationSeq++
	loc := &model.Location{ID: s.locationSeq, Name: name, Address: address}
	s.locations[loc.ID] = loc
	cp := *loc
	return &cp
}

// ImportBooking stores b as given, bypassing slot reservation. It exists to
// load rows that predate slot references.
func (s *Store) ImportBooking(b model.Booking) *model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingSeq++
	b.ID = s.bookingSeq
	if b.Status == "" {
		b.Status = model.BookingStatusConfirmed
	}
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.bookings[b.ID] = &b
	cp := b
	return &cp
}

// Events returns a snapshot of every outbox event, oldest first.
func (s *Store) Events() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// lockRow blocks until the row lock is free or ctx is done.
func (s *Store) lockRow(ctx context.Context, key string) error {
	s.locksMu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.locksMu.Unlock()

	select {
	case ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s: %v", repository.ErrRetryable, key, ctx.Err())
	}
}

func (s *Store) unlockRow(key string) {
	s.locksMu.Lock()
	ch := s.locks[key]
	s.locksMu.Unlock()
	<-ch
}

func slotKey(id int64) string    { return fmt.Sprintf("availability:%d", id) }
func bookingKey(id int64) string { return fmt.Sprintf("bookings:%d", id) }

// slotFor resolves the slot a booking occupies. Caller holds s.mu.
func (s *Store) slotFor(b *model.Booking, claimed map[int64]bool) *model.Slot {
	if b.AvailabilityID != nil {
		return s.slots[*b.AvailabilityID]
	}
	return legacySlot(s.slots, claimed, b.ServiceID, b.Date, func(sl *model.Slot) bool { return sl.IsAvailable })
}

// claimedSlots is the set of slots referenced by a booking's availability_id.
// Caller holds s.mu.
func (s *Store) claimedSlots() map[int64]bool {
	claimed := make(map[int64]bool, len(s.bookings))
	for _, b := range s.bookings {
		if b.AvailabilityID != nil {
			claimed[*b.AvailabilityID] = true
		}
	}
	return claimed
}

// legacySlot finds the slot of a booking without availability_id: the lowest
// id unavailable slot of its service and date that no other booking holds.
func legacySlot(slots map[int64]*model.Slot, claimed map[int64]bool, serviceID int64, date model.Date,
	available func(*model.Slot) bool) *model.Slot {
	var found *model.Slot
	for _, sl := range slots {
		if sl.ServiceID != serviceID || !sl.Date.Equal(date) || available(sl) || claimed[sl.ID] {
			continue
		}
		if found == nil || sl.ID < found.ID {
			found = sl
		}
	}
	return found
}

type userRepository struct{ s *Store }

func (r userRepository) Create(_ context.Context, user *model.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := user.Email
	if _, ok := s.emails[key]; ok {
		return fmt.Errorf("failed to create user: %w: users_email_key", repository.ErrDuplicate)
	}
	s.userSeq++
	user.ID = s.userSeq
	user.CreatedAt = s.now()
	cp := *user
	s.users[user.ID] = &cp
	s.emails[key] = user.ID
	return nil
}

func (r userRepository) GetByID(_ context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", repository.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (r userRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return nil, fmt.Errorf("failed to get user by email: %w", repository.ErrNotFound)
	}
	cp := *r.s.users[id]
	return &cp, nil
}

type serviceRepository struct{ s *Store }

func (r serviceRepository) Create(_ context.Context, service *model.Service) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[service.ProviderID]; !ok {
		return fmt.Errorf("failed to create service: %w: provider", repository.ErrNotFound)
	}
	if service.LocationID != nil {
		if _, ok := s.locations[*service.LocationID]; !ok {
			return fmt.Errorf("failed to create service: %w: location", repository.ErrNotFound)
		}
	}
	s.serviceSeq++
	service.ID = s.serviceSeq
	service.CreatedAt = s.now()
	cp := *service
	s.services[service.ID] = &cp
	return nil
}

func (r serviceRepository) Get(_ context.Context, id int64) (*model.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, fmt.Errorf("failed to get service: %w", repository.ErrNotFound)
	}
	cp := *svc
	return &cp, nil
}

func (r serviceRepository) List(_ context.Context) ([]*model.ServiceView, error) {
	return r.list(func(*model.Service) bool { return true }), nil
}

func (r serviceRepository) ListByProvider(_ context.Context, providerID int64) ([]*model.ServiceView, error) {
	return r.list(func(svc *model.Service) bool { return svc.ProviderID == providerID }), nil
}

func (r serviceRepository) list(keep func(*model.Service) bool) []*model.ServiceView {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ServiceView
	for _, svc := range s.services {
		if !keep(svc) {
			continue
		}
		view := &model.ServiceView{Service: *svc}
		if u, ok := s.users[svc.ProviderID]; ok {
			name := u.Name
			view.ProviderName = &name
		}
		if svc.LocationID != nil {
			if loc, ok := s.locations[*svc.LocationID]; ok {
				name := loc.Name
				view.LocationName = &name
			}
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type slotRepository struct{ s *Store }

func (r slotRepository) Create(_ context.Context, slot *model.Slot) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[slot.ServiceID]; !ok {
		return fmt.Errorf("failed to create slot: %w: service", repository.ErrNotFound)
	}
	s.slotSeq++
	slot.ID = s.slotSeq
	slot.CreatedAt = s.now()
	cp := *slot
	s.slots[slot.ID] = &cp
	return nil
}

func (r slotRepository) Get(_ context.Context, id int64) (*model.Slot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sl, ok := r.s.slots[id]
	if !ok {
		return nil, fmt.Errorf("failed to get slot: %w", repository.ErrNotFound)
	}
	cp := *sl
	return &cp, nil
}

func slotLess(a, b *model.Slot) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	return a.ID < b.ID
}

func (r slotRepository) ListByProvider(_ context.Context, providerID int64) ([]*model.ProviderSlotView, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.ProviderSlotView
	for _, sl := range s.slots {
		if sl.ProviderID != providerID {
			continue
		}
		svc := s.services[sl.ServiceID]
		out = append(out, &model.ProviderSlotView{Slot: *sl, ServiceName: svc.Name, Price: svc.Price})
	}
	sort.Slice(out, func(i, j int) bool { return slotLess(&out[i].Slot, &out[j].Slot) })
	return out, nil
}

func (r slotRepository) ListAvailable(_ context.Context, filter model.SlotFilter) ([]*model.PublicSlotView, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.PublicSlotView
	for _, sl := range s.slots {
		if !sl.IsAvailable {
			continue
		}
		if filter.ServiceID != nil && sl.ServiceID != *filter.ServiceID {
			continue
		}
		if filter.Date != nil && !sl.Date.Equal(*filter.Date) {
			continue
		}
		svc := s.services[sl.ServiceID]
		view := &model.PublicSlotView{
			Slot:        *sl,
			ServiceName: svc.Name,
			Description: svc.Description,
			Price:       svc.Price,
		}
		if u, ok := s.users[svc.ProviderID]; ok {
			view.ProviderName = u.Name
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return slotLess(&out[i].Slot, &out[j].Slot) })
	return out, nil
}

type bookingRepository struct{ s *Store }

func (r bookingRepository) Get(_ context.Context, id int64) (*model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, fmt.Errorf("failed to get booking: %w", repository.ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (r bookingRepository) ListByCustomer(_ context.Context, customerID int64) ([]*model.CustomerBookingView, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	claimed := s.claimedSlots()
	var out []*model.CustomerBookingView
	for _, b := range s.bookings {
		if b.CustomerID != customerID {
			continue
		}
		svc := s.services[b.ServiceID]
		view := &model.CustomerBookingView{
			Booking:     *b,
			ServiceName: svc.Name,
			Description: svc.Description,
			Price:       svc.Price,
		}
		if u, ok := s.users[svc.ProviderID]; ok {
			view.ProviderName = u.Name
		}
		if sl := s.slotFor(b, claimed); sl != nil {
			start, end := sl.StartTime, sl.EndTime
			view.StartTime, view.EndTime = &start, &end
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[j].Date.Before(out[i].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r bookingRepository) ListByProvider(_ context.Context, providerID int64) ([]*model.AppointmentView, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	claimed := s.claimedSlots()
	var out []*model.AppointmentView
	for _, b := range s.bookings {
		svc := s.services[b.ServiceID]
		if svc == nil || svc.ProviderID != providerID {
			continue
		}
		view := &model.AppointmentView{
			Booking:     *b,
			ServiceName: svc.Name,
			Price:       svc.Price,
		}
		if u, ok := s.users[b.CustomerID]; ok {
			view.CustomerName = u.Name
			view.CustomerEmail = u.Email
		}
		if sl := s.slotFor(b, claimed); sl != nil {
			start, end := sl.StartTime, sl.EndTime
			view.StartTime, view.EndTime = &start, &end
		}
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[j].Date.Before(out[i].Date)
		}
		si, sj := "", ""
		if out[i].StartTime != nil {
			si = *out[i].StartTime
		}
		if out[j].StartTime != nil {
			sj = *out[j].StartTime
		}
		if si != sj {
			return si > sj
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type outboxRepository struct{ s *Store }

func (r outboxRepository) GetPendingEvents(_ context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*model.OutboxEvent
	for _, e := range s.outbox {
		stale := e.Status == model.OutboxStatusProcessing && e.UpdatedAt.Before(staleBefore)
		if e.Status == model.OutboxStatusPending || stale {
			pending = append(pending, e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]*model.OutboxEvent, 0, len(pending))
	for _, e := range pending {
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = s.now()
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r outboxRepository) MarkEventProcessed(_ context.Context, id uuid.UUID) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("%w: outbox event", repository.ErrNotFound)
	}
	now := s.now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.UpdatedAt = now
	return nil
}

func (r outboxRepository) MarkEventFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.outbox[id]
	if !ok {
		return fmt.Errorf("%w: outbox event", repository.ErrNotFound)
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errMsg
	e.RetryCount++
	e.UpdatedAt = s.now()
	return nil
}

func (r outboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.outbox, id)
			n++
		}
	}
	return n, nil
}

type systemRepository struct{ s *Store }

func (systemRepository) Ping(context.Context) error { return nil }

func (systemRepository) ListTables(context.Context) ([]string, error) {
	return []string{"availability", "bookings", "locations", "outbox_events", "services", "users"}, nil
}
