package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

func authorizedRouter(user *models.User, resource string, action models.PermissionAction) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/guarded",
		func(c *gin.Context) {
			if user != nil {
				c.Set(ContextUserKey, user)
			}
		},
		Authorize(resource, action),
		func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
	return router
}

func TestAuthorizeWithoutPrincipal(t *testing.T) {
	router := authorizedRouter(nil, "complaints", models.ActionRead)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthorizeAllowsPermittedUser(t *testing.T) {
	user := &models.User{
		ID:       "u1",
		Role:     models.RoleOfficer,
		IsActive: true,
		Permissions: []models.Permission{
			{Resource: "complaints", Action: models.ActionRead},
		},
	}
	router := authorizedRouter(user, "complaints", models.ActionRead)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthorizeDeniesMissingPermission(t *testing.T) {
	user := &models.User{ID: "u1", Role: models.RoleOfficer, IsActive: true}
	router := authorizedRouter(user, "users", models.ActionManage)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthorizeSuperAdminBypass(t *testing.T) {
	user := &models.User{ID: "root", Role: models.RoleSuperAdmin, IsActive: true}
	router := authorizedRouter(user, "users", models.ActionManage)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/guarded", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
