package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type mockUserRepo struct {
	items      map[string]*models.User
	emailIndex map[string]string
	listResult []models.User
	listTotal  int
	auditLogs  []models.AuditLog
	active     map[string]bool
	replaced   map[string][]models.Permission
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.items[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.emailIndex[email]; ok {
		return m.FindByID(ctx, id)
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.items == nil {
		m.items = make(map[string]*models.User)
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	m.items[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	cp := *user
	m.items[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error {
	if m.active == nil {
		m.active = make(map[string]bool)
	}
	m.active[id] = active
	if u, ok := m.items[id]; ok {
		u.IsActive = active
	}
	return nil
}

func (m *mockUserRepo) ReplacePermissions(ctx context.Context, userID string, perms []models.Permission) error {
	if m.replaced == nil {
		m.replaced = make(map[string][]models.Permission)
	}
	m.replaced[userID] = perms
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, *log)
	return nil
}

func newTestUserService(repo *mockUserRepo) *UserService {
	return NewUserService(repo, validator.New(), zap.NewNop())
}

func validCreateUserRequest() CreateUserRequest {
	dept := models.DeptPublicWorks
	return CreateUserRequest{
		Email:      "new.officer@city.gov",
		Password:   "secret123",
		Name:       "New Officer",
		Role:       models.RoleOfficer,
		Department: &dept,
	}
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestUserService(repo)

	user, err := svc.Create(context.Background(), validCreateUserRequest(), "actor-1")
	require.NoError(t, err)

	assert.True(t, user.IsActive)
	assert.NotNil(t, user.Permissions)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{
		items:      map[string]*models.User{"u1": {ID: "u1", Email: "new.officer@city.gov"}},
		emailIndex: map[string]string{"new.officer@city.gov": "u1"},
	}
	svc := newTestUserService(repo)

	_, err := svc.Create(context.Background(), validCreateUserRequest(), "actor-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateRoleDepartmentRules(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestUserService(repo)

	tests := []struct {
		name   string
		mutate func(*CreateUserRequest)
		detail string
	}{
		{"unknown role", func(r *CreateUserRequest) { r.Role = "mayor" }, "unknown role"},
		{"civil not provisioned", func(r *CreateUserRequest) { r.Role = models.RoleCivil }, "not provisioned"},
		{"scoped role needs department", func(r *CreateUserRequest) { r.Department = nil }, "required for department-scoped"},
		{"unknown department", func(r *CreateUserRequest) { d := "parks"; r.Department = &d }, "unknown department"},
		{"short password", func(r *CreateUserRequest) { r.Password = "abc" }, "min"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateUserRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req, "actor-1")
			require.Error(t, err)
			assert.Contains(t, appErrors.FromError(err).Message, tc.detail)
		})
	}
}

func TestUserServiceCreateAdminWithoutDepartment(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestUserService(repo)

	req := validCreateUserRequest()
	req.Role = models.RoleAdmin
	req.Department = nil

	user, err := svc.Create(context.Background(), req, "actor-1")
	require.NoError(t, err)
	assert.Nil(t, user.Department)
}

func TestUserServiceCreateRejectsUnknownPermissionAction(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestUserService(repo)

	req := validCreateUserRequest()
	req.Permissions = []models.Permission{{Resource: "complaints", Action: "approve"}}

	_, err := svc.Create(context.Background(), req, "actor-1")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "unknown action")
}

func TestUserServiceSetStatusBlocksSelfDeactivation(t *testing.T) {
	repo := &mockUserRepo{
		items: map[string]*models.User{"u1": {ID: "u1", Role: models.RoleAdmin, IsActive: true}},
	}
	svc := newTestUserService(repo)

	off := false
	_, err := svc.SetStatus(context.Background(), "u1", SetUserStatusRequest{Active: &off}, "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// Another actor can deactivate the account.
	user, err := svc.SetStatus(context.Background(), "u1", SetUserStatusRequest{Active: &off}, "actor-2")
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, false, repo.active["u1"])
}

func TestUserServiceReplacePermissions(t *testing.T) {
	repo := &mockUserRepo{
		items: map[string]*models.User{"u1": {ID: "u1", Role: models.RoleOfficer, IsActive: true}},
	}
	svc := newTestUserService(repo)

	perms := []models.Permission{
		{Resource: "complaints", Action: models.ActionManage},
		{Resource: "users", Action: models.ActionRead},
	}
	user, err := svc.ReplacePermissions(context.Background(), "u1", ReplacePermissionsRequest{Permissions: perms}, "actor-1")
	require.NoError(t, err)

	assert.Equal(t, perms, user.Permissions)
	assert.Equal(t, perms, repo.replaced["u1"])
	require.NotEmpty(t, repo.auditLogs)
	assert.Equal(t, models.AuditActionPermissionsUpdate, repo.auditLogs[len(repo.auditLogs)-1].Action)
}

func TestUserServiceUpdateNotFound(t *testing.T) {
	repo := &mockUserRepo{}
	svc := newTestUserService(repo)

	_, err := svc.Update(context.Background(), "missing", UpdateUserRequest{Name: "X", Role: models.RoleAdmin}, "actor-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
