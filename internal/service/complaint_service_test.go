package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type mockComplaintRepo struct {
	items       map[string]*models.Complaint
	listResult  []models.Complaint
	listTotal   int
	listErr     error
	lastFilter  models.ComplaintFilter
	transitions []models.StatusHistoryEntry
	assigned    map[string]*string
}

func (m *mockComplaintRepo) Create(ctx context.Context, complaint *models.Complaint) error {
	if m.items == nil {
		m.items = make(map[string]*models.Complaint)
	}
	if complaint.ID == "" {
		complaint.ID = "generated"
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	cp := *complaint
	m.items[complaint.ID] = &cp
	return nil
}

func (m *mockComplaintRepo) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	if c, ok := m.items[id]; ok {
		cp := *c
		cp.StatusHistory = append([]models.StatusHistoryEntry(nil), c.StatusHistory...)
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockComplaintRepo) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listResult, m.listTotal, nil
}

func (m *mockComplaintRepo) Transition(ctx context.Context, complaintID string, entry *models.StatusHistoryEntry) error {
	c, ok := m.items[complaintID]
	if !ok {
		return sql.ErrNoRows
	}
	entry.ID = "h-generated"
	entry.ComplaintID = complaintID
	m.transitions = append(m.transitions, *entry)
	c.Status = entry.Status
	c.StatusHistory = append(c.StatusHistory, *entry)
	return nil
}

func (m *mockComplaintRepo) Assign(ctx context.Context, complaintID string, assignee *string) error {
	if m.assigned == nil {
		m.assigned = make(map[string]*string)
	}
	m.assigned[complaintID] = assignee
	if c, ok := m.items[complaintID]; ok {
		c.AssignedTo = assignee
	}
	return nil
}

type mockStaffDirectory struct {
	users map[string]*models.User
}

func (m *mockStaffDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func strPtr(s string) *string { return &s }

func staffUser(role models.UserRole, department string, perms ...models.Permission) *models.User {
	u := &models.User{
		ID:          "u-" + string(role),
		Role:        role,
		IsActive:    true,
		Permissions: perms,
	}
	if department != "" {
		u.Department = strPtr(department)
	}
	return u
}

func newTestComplaintService(repo *mockComplaintRepo, staff *mockStaffDirectory) *ComplaintService {
	if staff == nil {
		staff = &mockStaffDirectory{}
	}
	return NewComplaintService(repo, staff, validator.New(), zap.NewNop())
}

func validCreateRequest() CreateComplaintRequest {
	return CreateComplaintRequest{
		Title:       "Broken streetlight on Oak Avenue",
		Description: "The streetlight outside number 42 has been dark for a week.",
		Department:  models.DeptPublicWorks,
		Category:    "Infrastructure Issue",
		Location: CreateComplaintLocation{
			Address: "42 Oak Avenue",
			Area:    "Northside",
		},
	}
}

func TestComplaintServiceCreate(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	complaint, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusSubmitted, complaint.Status)
	assert.Equal(t, models.PriorityMedium, complaint.Priority)
	assert.True(t, complaint.Anonymous)
	assert.Empty(t, complaint.StatusHistory)
	assert.Equal(t, "Northside", complaint.Location.Area)
}

func TestComplaintServiceCreateNamedSubmission(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	anonymous := false
	req := validCreateRequest()
	req.Anonymous = &anonymous
	req.Priority = models.PriorityUrgent

	complaint, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, complaint.Anonymous)
	assert.Equal(t, models.PriorityUrgent, complaint.Priority)
}

func TestComplaintServiceCreateValidation(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	tests := []struct {
		name   string
		mutate func(*CreateComplaintRequest)
		field  string
	}{
		{"title too long", func(r *CreateComplaintRequest) { r.Title = strings.Repeat("x", 201) }, "Title"},
		{"description too long", func(r *CreateComplaintRequest) { r.Description = strings.Repeat("x", 2001) }, "Description"},
		{"missing title", func(r *CreateComplaintRequest) { r.Title = "" }, "Title"},
		{"missing address", func(r *CreateComplaintRequest) { r.Location.Address = "" }, "Address"},
		{"unknown department", func(r *CreateComplaintRequest) { r.Department = "parks" }, "department"},
		{"unknown category", func(r *CreateComplaintRequest) { r.Category = "Weather" }, "category"},
		{"unknown priority", func(r *CreateComplaintRequest) { r.Priority = "extreme" }, "priority"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Contains(t, appErr.Message, tc.field)
		})
	}
}

func TestComplaintServiceTransitionAppendsOneEntry(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	officer := staffUser(models.RoleOfficer, models.DeptPublicWorks,
		models.Permission{Resource: "complaints", Action: models.ActionUpdate})

	notes := "assigned to field crew"
	updated, err := svc.Transition(context.Background(), officer, created.ID, TransitionRequest{
		Status: models.StatusInProgress,
		Notes:  &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, updated.Status)
	require.Len(t, repo.transitions, 1)
	entry := repo.transitions[0]
	assert.Equal(t, models.StatusInProgress, entry.Status)
	require.NotNil(t, entry.ChangedBy)
	assert.Equal(t, officer.ID, *entry.ChangedBy)
	assert.False(t, entry.ChangedAt.IsZero())
	require.NotNil(t, entry.Notes)
	assert.Equal(t, notes, *entry.Notes)
	require.Len(t, updated.StatusHistory, 1)
}

func TestComplaintServiceTransitionSameStatusRecorded(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleAdmin, "")
	_, err = svc.Transition(context.Background(), admin, created.ID, TransitionRequest{Status: models.StatusSubmitted})
	require.NoError(t, err)

	// Re-stamping the current status still lands on the trail.
	assert.Len(t, repo.transitions, 1)
}

func TestComplaintServiceTransitionWrongDepartment(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	officer := staffUser(models.RoleOfficer, models.DeptTransport,
		models.Permission{Resource: "complaints", Action: models.ActionManage})

	_, err = svc.Transition(context.Background(), officer, created.ID, TransitionRequest{Status: models.StatusInReview})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, repo.transitions)
}

func TestComplaintServiceTransitionInactiveActor(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleSuperAdmin, "")
	admin.IsActive = false

	_, err = svc.Transition(context.Background(), admin, created.ID, TransitionRequest{Status: models.StatusClosed})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceTransitionUnknownStatus(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleSuperAdmin, "")
	_, err = svc.Transition(context.Background(), admin, created.ID, TransitionRequest{Status: "archived"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.transitions)
}

func TestComplaintServiceTransitionNotFound(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	admin := staffUser(models.RoleSuperAdmin, "")
	_, err := svc.Transition(context.Background(), admin, "missing", TransitionRequest{Status: models.StatusClosed})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceReopenClosedComplaint(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleSuperAdmin, "")
	for _, status := range []models.ComplaintStatus{models.StatusClosed, models.StatusInReview} {
		_, err = svc.Transition(context.Background(), admin, created.ID, TransitionRequest{Status: status})
		require.NoError(t, err)
	}

	got, err := svc.Get(context.Background(), admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, got.Status)
	assert.Len(t, got.StatusHistory, 2)
}

func TestComplaintServiceGetScopedRead(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	own := staffUser(models.RoleDepartmentHead, models.DeptPublicWorks,
		models.Permission{Resource: "complaints", Action: models.ActionRead})
	other := staffUser(models.RoleDepartmentHead, models.DeptHousing,
		models.Permission{Resource: "complaints", Action: models.ActionRead})

	_, err = svc.Get(context.Background(), own, created.ID)
	assert.NoError(t, err)

	_, err = svc.Get(context.Background(), other, created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceListRestrictsScopedRoles(t *testing.T) {
	repo := &mockComplaintRepo{listResult: []models.Complaint{}, listTotal: 0}
	svc := newTestComplaintService(repo, nil)

	officer := staffUser(models.RoleOfficer, models.DeptHealthSanitation,
		models.Permission{Resource: "complaints", Action: models.ActionRead})

	// A scoped role asking for another department is silently pinned to its own.
	_, pagination, err := svc.List(context.Background(), officer, models.ComplaintFilter{Department: models.DeptTransport})
	require.NoError(t, err)
	assert.Equal(t, models.DeptHealthSanitation, repo.lastFilter.Department)
	assert.Equal(t, 1, pagination.Page)

	admin := staffUser(models.RoleAdmin, "")
	_, _, err = svc.List(context.Background(), admin, models.ComplaintFilter{Department: models.DeptTransport, Page: 2, PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, models.DeptTransport, repo.lastFilter.Department)
}

func TestComplaintServiceListDeniesCivil(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newTestComplaintService(repo, nil)

	civil := staffUser(models.RoleCivil, "")
	_, _, err := svc.List(context.Background(), civil, models.ComplaintFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestComplaintServiceAssign(t *testing.T) {
	repo := &mockComplaintRepo{}
	officer := staffUser(models.RoleOfficer, models.DeptPublicWorks,
		models.Permission{Resource: "complaints", Action: models.ActionRead})
	staff := &mockStaffDirectory{users: map[string]*models.User{officer.ID: officer}}
	svc := newTestComplaintService(repo, staff)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleAdmin, "")
	updated, err := svc.Assign(context.Background(), admin, created.ID, AssignRequest{AssigneeID: &officer.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, officer.ID, *updated.AssignedTo)

	// Clearing the assignment.
	updated, err = svc.Assign(context.Background(), admin, created.ID, AssignRequest{})
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedTo)
}

func TestComplaintServiceAssignRejectsWrongDepartment(t *testing.T) {
	repo := &mockComplaintRepo{}
	outsider := staffUser(models.RoleOfficer, models.DeptEducation)
	staff := &mockStaffDirectory{users: map[string]*models.User{outsider.ID: outsider}}
	svc := newTestComplaintService(repo, staff)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleAdmin, "")
	_, err = svc.Assign(context.Background(), admin, created.ID, AssignRequest{AssigneeID: &outsider.ID})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "different department")
}

func TestComplaintServiceAssignRejectsInactiveAssignee(t *testing.T) {
	repo := &mockComplaintRepo{}
	inactive := staffUser(models.RoleOfficer, models.DeptPublicWorks)
	inactive.IsActive = false
	staff := &mockStaffDirectory{users: map[string]*models.User{inactive.ID: inactive}}
	svc := newTestComplaintService(repo, staff)

	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	admin := staffUser(models.RoleAdmin, "")
	_, err = svc.Assign(context.Background(), admin, created.ID, AssignRequest{AssigneeID: &inactive.ID})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "not an active staff account")
}
