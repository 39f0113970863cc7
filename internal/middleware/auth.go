package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/pkg/auth"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const ContextPrincipal = "principal"

// PrincipalLoader resolves a token subject into the calling user.
type PrincipalLoader interface {
	Principal(ctx context.Context, userID uuid.UUID) (*model.Principal, error)
}

// Authorizer makes the per-request permission decisions.
type Authorizer interface {
	Require(ctx context.Context, p *model.Principal, c model.Capability) error
	RequireOwner(ctx context.Context, p *model.Principal) error
}

type AuthMiddleware struct {
	tokens     auth.JWTService
	users      PrincipalLoader
	authorizer Authorizer
	// principals caches identity only. Capabilities are resolved on every
	// request so permission edits apply immediately.
	principals *cache.Cache
}

func NewAuthMiddleware(tokens auth.JWTService, users PrincipalLoader, authorizer Authorizer, ttl time.Duration) *AuthMiddleware {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AuthMiddleware{
		tokens:     tokens,
		users:      users,
		authorizer: authorizer,
		principals: cache.New(ttl, 2*ttl),
	}
}

// Authenticate verifies the bearer token and stores the principal in the
// context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			handler.Fail(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			handler.Fail(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		userID, err := m.tokens.ValidateToken(token)
		if err != nil {
			handler.Fail(c, apperrors.Unauthorized(err))
			return
		}

		p, err := m.principal(c.Request.Context(), userID)
		if err != nil {
			handler.Fail(c, err)
			return
		}

		c.Set(ContextPrincipal, p)
		c.Next()
	}
}

func (m *AuthMiddleware) principal(ctx context.Context, userID uuid.UUID) (*model.Principal, error) {
	key := userID.String()
	if cached, ok := m.principals.Get(key); ok {
		return cached.(*model.Principal), nil
	}
	p, err := m.users.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.principals.SetDefault(key, p)
	return p, nil
}

// Forget drops a cached principal, e.g. after the user was deactivated.
func (m *AuthMiddleware) Forget(userID uuid.UUID) {
	m.principals.Delete(userID.String())
}

// RequireMember admits principals that belong to a clinic.
func (m *AuthMiddleware) RequireMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetPrincipal(c).ClinicID == nil {
			handler.Fail(c, apperrors.Forbidden("clinic membership required"))
			return
		}
		c.Next()
	}
}

// RequireCapability admits principals whose resolved permissions grant cp.
func (m *AuthMiddleware) RequireCapability(cp model.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.authorizer.Require(c.Request.Context(), GetPrincipal(c), cp); err != nil {
			handler.Fail(c, err)
			return
		}
		c.Next()
	}
}

// Allowed reports whether the caller holds cp, for handlers that trim a
// response rather than reject the request.
func (m *AuthMiddleware) Allowed(c *gin.Context, cp model.Capability) bool {
	return m.authorizer.Require(c.Request.Context(), GetPrincipal(c), cp) == nil
}

func (m *AuthMiddleware) RequireOwner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.authorizer.RequireOwner(c.Request.Context(), GetPrincipal(c)); err != nil {
			handler.Fail(c, err)
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetPrincipal(c).Role != model.RoleAdmin {
			handler.Fail(c, apperrors.Forbidden("admin access required"))
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the authenticated caller. Routes behind
// Authenticate always have one.
func GetPrincipal(c *gin.Context) *model.Principal {
	if v, ok := c.Get(ContextPrincipal); ok {
		if p, ok := v.(*model.Principal); ok {
			return p
		}
	}
	return &model.Principal{}
}
