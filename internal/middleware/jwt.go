package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/access"
	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// Context keys for the authenticated principal.
const (
	ContextClaimsKey = "currentClaims"
	ContextUserKey   = "currentUser"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

type userLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// JWT protects staff routes: it validates the bearer token, resolves the full
// principal (with permissions) from the store, and rejects inactive or
// non-staff accounts. The resolved user is what the authorization predicate
// evaluates downstream.
func JWT(tokens tokenValidator, users userLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "token principal no longer exists"))
			c.Abort()
			return
		}
		if !access.CanAccessAdmin(user) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "staff access required"))
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// UserFromContext returns the resolved principal, or nil outside staff routes.
func UserFromContext(c *gin.Context) *models.User {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
