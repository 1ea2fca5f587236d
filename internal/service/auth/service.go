package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/internal/repository"
	"github.com/slotbook/booking-api/internal/service"
	"github.com/slotbook/booking-api/pkg/auth"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/logger"
	"github.com/slotbook/booking-api/pkg/security"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailTaken         = "User with this email already exists"
)

type Service struct {
	userRepo repository.UserRepository
	jwtSvc   auth.JWTService
	hasher   security.PasswordHasher
	log      *logger.Logger
}

func NewService(userRepo repository.UserRepository, jwtSvc auth.JWTService,
	hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		jwtSvc:   jwtSvc,
		hasher:   hasher,
		log:      log,
	}
}

// normalizeEmail lowercases emails so lookups and the unique index agree on
// every storage driver.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (*model.AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, apperrors.Validation("Name, email, and password are required")
	}

	role, err := model.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Validation("Role must be customer or provider")
	}

	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.Conflict(msgEmailTaken)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, service.StoreError("Server error during registration", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Server error during registration", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict(msgEmailTaken)
		}
		return nil, service.StoreError("Server error during registration", err)
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal("Server error during registration", err)
	}

	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &model.AuthResult{User: user.Public(), Token: token}, nil
}

func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.AuthResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.Unauthorized(msgInvalidCredentials)
		}
		return nil, service.StoreError("Server error during login", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.jwtSvc.GenerateToken(user)
	if err != nil {
		return nil, apperrors.Internal("Server error during login", err)
	}

	return &model.AuthResult{User: user.Public(), Token: token}, nil
}

// VerifyToken resolves a bearer token to the caller's identity. An empty token
// is Unauthorized; a bad or expired one is Forbidden.
func (s *Service) VerifyToken(_ context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, apperrors.Unauthorized("Access denied. No token provided.")
	}
	id, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.New(apperrors.KindForbidden, "Invalid or expired token.", err)
	}
	return id, nil
}

func (s *Service) Profile(ctx context.Context, identity model.Identity) (*model.PublicUser, error) {
	user, err := s.userRepo.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, service.StoreError("Server error", err)
	}
	pub := user.Public()
	return &pub, nil
}
