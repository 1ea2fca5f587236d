package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository/memory"
	"github.com/slotbook/booking-api/pkg/auth"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/security"
)

func newTestService() *Service {
	store := memory.NewStore()
	return NewService(store.Users(), auth.NewJWTService("test-secret", "booking-api", time.Hour),
		security.NewBcryptHasher(bcrypt.MinCost), logger.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	reg, err := s.Register(ctx, model.RegisterRequest{
		Name: "Pat", Email: "pat@example.com", Password: "hunter22", Role: "provider",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, model.RoleProvider, reg.User.Role)
	assert.Equal(t, "pat@example.com", reg.User.Email)

	login, err := s.Login(ctx, model.LoginRequest{Email: "pat@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	id, err := s.VerifyToken(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, id.UserID)
	assert.Equal(t, model.RoleProvider, id.Role)

	profile, err := s.Profile(ctx, *id)
	require.NoError(t, err)
	assert.Equal(t, "Pat", profile.Name)
}

func TestRegisterDefaultsToCustomer(t *testing.T) {
	s := newTestService()

	reg, err := s.Register(context.Background(), model.RegisterRequest{
		Name: "Cy", Email: "cy@example.com", Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleCustomer, reg.User.Role)
}

func TestRegisterRejects(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	_, err := s.Register(ctx, model.RegisterRequest{Name: "Cy", Email: "cy@example.com", Password: "secret"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  model.RegisterRequest
		kind apperrors.Kind
	}{
		{"missing name", model.RegisterRequest{Email: "a@example.com", Password: "x"}, apperrors.KindValidation},
		{"missing password", model.RegisterRequest{Name: "A", Email: "a@example.com"}, apperrors.KindValidation},
		{"unknown role", model.RegisterRequest{Name: "A", Email: "a@example.com", Password: "x", Role: "admin"}, apperrors.KindValidation},
		{"duplicate email", model.RegisterRequest{Name: "B", Email: "cy@example.com", Password: "y"}, apperrors.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Register(ctx, tt.req)
			assert.True(t, apperrors.Is(err, tt.kind), "got %v", err)
			assert.Equal(t, 400, apperrors.KindOf(err).StatusCode())
		})
	}
}

func TestLoginRejects(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	_, err := s.Register(ctx, model.RegisterRequest{Name: "Cy", Email: "cy@example.com", Password: "secret"})
	require.NoError(t, err)

	_, err = s.Login(ctx, model.LoginRequest{Email: "cy@example.com", Password: "wrong"})
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = s.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "secret"})
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid email or password", appErr.Message)

	_, err = s.Login(ctx, model.LoginRequest{Email: "cy@example.com"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestVerifyToken(t *testing.T) {
	s := newTestService()

	_, err := s.VerifyToken(context.Background(), "")
	assert.True(t, apperrors.Is(err, apperrors.KindUnauthorized))

	_, err = s.VerifyToken(context.Background(), "not.a.token")
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
}

func TestEmailIsCaseInsensitive(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	reg, err := s.Register(ctx, model.RegisterRequest{
		Name: "Cy", Email: "  Cy@Example.COM ", Password: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "cy@example.com", reg.User.Email)

	login, err := s.Login(ctx, model.LoginRequest{Email: "CY@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = s.Register(ctx, model.RegisterRequest{Name: "Other", Email: "cy@EXAMPLE.com", Password: "x"})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}
