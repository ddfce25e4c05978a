package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/civicdesk/civicdesk-api/internal/access"
	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/response"
)

// Authorize gates a route on access.CanPerform for an unscoped resource
// check. Department-scoped decisions (which need the target complaint's
// department) happen in the service layer through the same predicate; this
// middleware is the thin route-level caller.
func Authorize(resource string, action models.PermissionAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFromContext(c)
		if user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if d := access.CanPerform(user, resource, action, ""); !d.Allowed {
			response.Error(c, d.Err())
			c.Abort()
			return
		}
		c.Next()
	}
}
