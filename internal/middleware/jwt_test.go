package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type fakeTokenValidator struct {
	claims *models.JWTClaims
	err    error
}

func (f *fakeTokenValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	return f.claims, f.err
}

type fakeUserLoader struct {
	user *models.User
}

func (f *fakeUserLoader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.user == nil {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func protectedRouter(tokens tokenValidator, users userLoader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", JWT(tokens, users), func(c *gin.Context) {
		user := UserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": user.ID})
	})
	return router
}

func TestJWTMissingHeader(t *testing.T) {
	router := protectedRouter(&fakeTokenValidator{}, &fakeUserLoader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	router := protectedRouter(&fakeTokenValidator{}, &fakeUserLoader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTInvalidToken(t *testing.T) {
	router := protectedRouter(&fakeTokenValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}, &fakeUserLoader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer bad")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTDeletedPrincipal(t *testing.T) {
	tokens := &fakeTokenValidator{claims: &models.JWTClaims{UserID: "gone"}}
	router := protectedRouter(tokens, &fakeUserLoader{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer ok")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsCivilAndInactive(t *testing.T) {
	cases := []struct {
		name string
		user *models.User
	}{
		{"civil role", &models.User{ID: "u1", Role: models.RoleCivil, IsActive: true}},
		{"inactive staff", &models.User{ID: "u2", Role: models.RoleAdmin, IsActive: false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tokens := &fakeTokenValidator{claims: &models.JWTClaims{UserID: tc.user.ID}}
			router := protectedRouter(tokens, &fakeUserLoader{user: tc.user})

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			req.Header.Set("Authorization", "Bearer ok")
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusForbidden, rec.Code)
		})
	}
}

func TestJWTResolvesPrincipal(t *testing.T) {
	user := &models.User{ID: "u1", Role: models.RoleOfficer, IsActive: true}
	tokens := &fakeTokenValidator{claims: &models.JWTClaims{UserID: "u1"}}
	router := protectedRouter(tokens, &fakeUserLoader{user: user})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer ok")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)
}

func TestUserFromContextOutsideStaffRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	assert.Nil(t, UserFromContext(c))
}
