package slot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/repository/memory"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
)

type env struct {
	store    *memory.Store
	svc      *Service
	provider model.Identity
	rival    model.Identity
	customer model.Identity
	service  *model.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	user := func(name, email string, role model.Role) model.Identity {
		u := &model.User{Name: name, Email: email, Role: role}
		require.NoError(t, store.Users().Create(ctx, u))
		return model.Identity{UserID: u.ID, Email: email, Role: role}
	}
	e := &env{store: store, svc: NewService(store.Slots(), store.Services(), logger.Nop())}
	e.provider = user("Pat", "pat@example.com", model.RoleProvider)
	e.rival = user("Ola", "ola@example.com", model.RoleProvider)
	e.customer = user("Cy", "cy@example.com", model.RoleCustomer)

	e.service = &model.Service{ProviderID: e.provider.UserID, Name: "Haircut", Price: 25}
	require.NoError(t, store.Services().Create(ctx, e.service))
	return e
}

func (e *env) request(date, start, end string) model.PublishSlotRequest {
	return model.PublishSlotRequest{ServiceID: e.service.ID, Date: date, StartTime: start, EndTime: end}
}

func TestPublishSlot(t *testing.T) {
	e := newEnv(t)

	sl, err := e.svc.PublishSlot(context.Background(), e.provider, e.request("2030-01-02", "09:00", "10:30"))
	require.NoError(t, err)
	assert.True(t, sl.IsAvailable)
	assert.Equal(t, "09:00:00", sl.StartTime)
	assert.Equal(t, "10:30:00", sl.EndTime)
	assert.Equal(t, e.provider.UserID, sl.ProviderID)

	public, err := e.svc.ListPublicSlots(context.Background(), model.SlotFilter{})
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "Pat", public[0].ProviderName)
	assert.Equal(t, "Haircut", public[0].ServiceName)
}

func TestPublishClosedSlotIsHidden(t *testing.T) {
	e := newEnv(t)
	closed := false
	req := e.request("2030-01-02", "09:00", "10:00")
	req.IsAvailable = &closed

	_, err := e.svc.PublishSlot(context.Background(), e.provider, req)
	require.NoError(t, err)

	public, err := e.svc.ListPublicSlots(context.Background(), model.SlotFilter{})
	require.NoError(t, err)
	assert.Empty(t, public)

	own, err := e.svc.ListOwnSlots(context.Background(), e.provider)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.False(t, own[0].IsAvailable)
}

func TestPublishSlotRejects(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name     string
		identity model.Identity
		req      model.PublishSlotRequest
		kind     apperrors.Kind
	}{
		{"customer", e.customer, e.request("2030-01-02", "09:00", "10:00"), apperrors.KindForbidden},
		{"missing date", e.provider, e.request("", "09:00", "10:00"), apperrors.KindValidation},
		{"bad date", e.provider, e.request("02/01/2030", "09:00", "10:00"), apperrors.KindValidation},
		{"bad time", e.provider, e.request("2030-01-02", "9am", "10:00"), apperrors.KindValidation},
		{"end before start", e.provider, e.request("2030-01-02", "10:00", "09:00"), apperrors.KindValidation},
		{"empty range", e.provider, e.request("2030-01-02", "10:00", "10:00"), apperrors.KindValidation},
		{"not owner", e.rival, e.request("2030-01-02", "09:00", "10:00"), apperrors.KindNotFound},
		{"unknown service", e.provider, model.PublishSlotRequest{ServiceID: 99, Date: "2030-01-02", StartTime: "09:00", EndTime: "10:00"}, apperrors.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.PublishSlot(context.Background(), tt.identity, tt.req)
			assert.True(t, apperrors.Is(err, tt.kind), "got %v", err)
		})
	}

	own, err := e.svc.ListOwnSlots(context.Background(), e.provider)
	require.NoError(t, err)
	assert.Empty(t, own)
}

func TestListPublicSlotsFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	other := &model.Service{ProviderID: e.provider.UserID, Name: "Shave", Price: 10}
	require.NoError(t, e.store.Services().Create(ctx, other))

	for _, req := range []model.PublishSlotRequest{
		e.request("2030-01-03", "09:00", "10:00"),
		e.request("2030-01-02", "11:00", "12:00"),
		e.request("2030-01-02", "09:00", "10:00"),
		{ServiceID: other.ID, Date: "2030-01-02", StartTime: "09:00", EndTime: "09:30"},
	} {
		_, err := e.svc.PublishSlot(ctx, e.provider, req)
		require.NoError(t, err)
	}

	all, err := e.svc.ListPublicSlots(ctx, model.SlotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "2030-01-02", all[0].Date.String())
	assert.Equal(t, "09:00:00", all[0].StartTime)
	assert.Equal(t, "2030-01-03", all[3].Date.String())

	date, err := model.ParseDate("2030-01-02")
	require.NoError(t, err)
	byDate, err := e.svc.ListPublicSlots(ctx, model.SlotFilter{Date: &date})
	require.NoError(t, err)
	assert.Len(t, byDate, 3)

	byBoth, err := e.svc.ListPublicSlots(ctx, model.SlotFilter{ServiceID: &e.service.ID, Date: &date})
	require.NoError(t, err)
	require.Len(t, byBoth, 2)
	assert.Equal(t, "09:00:00", byBoth[0].StartTime)
	assert.Equal(t, "11:00:00", byBoth[1].StartTime)
}

func TestListOwnSlotsRequiresProvider(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.ListOwnSlots(context.Background(), e.customer)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestReserveAndRelease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sl, err := e.svc.PublishSlot(ctx, e.provider, e.request("2030-01-02", "09:00", "10:00"))
	require.NoError(t, err)

	require.NoError(t, e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		reserved, err := e.svc.Reserve(ctx, tx, sl.ID)
		require.NoError(t, err)
		assert.False(t, reserved.IsAvailable)

		_, err = e.svc.Reserve(ctx, tx, sl.ID)
		assert.True(t, apperrors.Is(err, apperrors.KindUnavailable), "second reserve in the same transaction")
		return nil
	}))

	got, err := e.store.Slots().Get(ctx, sl.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	require.NoError(t, e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, e.svc.Release(ctx, tx, sl.ID))
		// releasing twice is harmless
		return e.svc.Release(ctx, tx, sl.ID)
	}))
	got, err = e.store.Slots().Get(ctx, sl.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
}

func TestLockForRescheduleServiceMismatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	other := &model.Service{ProviderID: e.provider.UserID, Name: "Shave", Price: 10}
	require.NoError(t, e.store.Services().Create(ctx, other))

	a, err := e.svc.PublishSlot(ctx, e.provider, e.request("2030-01-02", "09:00", "10:00"))
	require.NoError(t, err)
	b, err := e.svc.PublishSlot(ctx, e.provider, model.PublishSlotRequest{ServiceID: other.ID, Date: "2030-01-02", StartTime: "10:00", EndTime: "11:00"})
	require.NoError(t, err)

	booking := &model.Booking{ID: 1, ServiceID: e.service.ID, AvailabilityID: &a.ID, Date: a.Date}
	err = e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, _, err := e.svc.LockForReschedule(ctx, tx, booking, b.ID)
		return err
	})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestReleaseBookedSlotToleratesMissingSlot(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	gone := int64(77)
	booking := &model.Booking{ID: 1, ServiceID: e.service.ID, AvailabilityID: &gone}

	require.NoError(t, e.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		released, err := e.svc.ReleaseBookedSlot(ctx, tx, booking)
		assert.Nil(t, released)
		return err
	}))
}
