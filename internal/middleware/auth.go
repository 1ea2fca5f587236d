package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/slotbook/booking-api/internal/model"
	"github.com/slotbook/booking-api/pkg/auth"
	apperrors "github.com/slotbook/booking-api/pkg/errors"
	"github.com/slotbook/booking-api/pkg/httputil"
)

const ContextIdentity = "identity"

// TokenVerifier resolves a bearer token to the caller it was issued to.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*model.Identity, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the caller's identity in
// both the gin context and the request context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		identity, err := m.verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			httputil.Abort(c, err)
			return
		}

		c.Set(ContextIdentity, *identity)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), *identity))
		c.Next()
	}
}

// RequireRole lets the request through only when the authenticated caller
// holds one of roles. It must run after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.String()
	}
	denied := "Access denied. Required role: " + strings.Join(names, " or ")

	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			httputil.Abort(c, apperrors.Unauthorized("Access denied. No token provided."))
			return
		}
		if !slices.Contains(roles, identity.Role) {
			httputil.Abort(c, apperrors.Forbidden(denied))
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity stored by Authenticate.
func IdentityFrom(c *gin.Context) (model.Identity, bool) {
	v, exists := c.Get(ContextIdentity)
	if !exists {
		return model.Identity{}, false
	}
	identity, ok := v.(model.Identity)
	return identity, ok
}

func bearerToken(header string) string {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
