package middleware

import (
	"context"
	"strings"
	"time"

	"fogsly/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	RoleUser    = "user"
	RoleAdmin   = "admin"
	RoleAuditor = "auditor"
)

const identityKey = "fogsly.identity"

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*Identity, error)
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			_ = c.Error(errutil.Unauthorized("missing bearer token", nil))
			c.Abort()
			return
		}

		id, err := v.Authenticate(c.Request.Context(), raw)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}

// MustIdentity is for handlers mounted behind RequireAuth.
func MustIdentity(c *gin.Context) *Identity {
	id, ok := IdentityFrom(c)
	if !ok {
		panic("middleware: handler mounted without RequireAuth")
	}
	return id
}

// SetIdentity is used by tests to mount handlers without a token round trip.
func SetIdentity(c *gin.Context, id *Identity) {
	c.Set(identityKey, id)
}
