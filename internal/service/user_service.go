package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool, updatedAt time.Time) error
	ReplacePermissions(ctx context.Context, userID string, perms []models.Permission) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest creates a staff account.
type CreateUserRequest struct {
	Email       string              `json:"email" validate:"required,email"`
	Password    string              `json:"password" validate:"required,min=6"`
	Name        string              `json:"name" validate:"required"`
	Role        models.UserRole     `json:"role" validate:"required"`
	Department  *string             `json:"department"`
	Permissions []models.Permission `json:"permissions"`
	Phone       *string             `json:"phone"`
}

// UpdateUserRequest updates mutable account fields.
type UpdateUserRequest struct {
	Name       string          `json:"name" validate:"required"`
	Role       models.UserRole `json:"role" validate:"required"`
	Department *string         `json:"department"`
	Phone      *string         `json:"phone"`
	Avatar     *string         `json:"avatar"`
}

// SetUserStatusRequest toggles the is_active gate.
type SetUserStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// ReplacePermissionsRequest swaps a user's permission set.
type ReplacePermissionsRequest struct {
	Permissions []models.Permission `json:"permissions" validate:"required"`
}

// UserService provides staff account administration. Authorization happens in
// the route middleware; the service records who acted for the audit trail.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single user with permissions.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create provisions a staff account. Accounts are never hard-deleted;
// deactivation is the only retirement path.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := validateRoleAndDepartment(req.Role, req.Department); err != nil {
		return nil, err
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Role:         req.Role,
		Department:   req.Department,
		Permissions:  req.Permissions,
		IsActive:     true,
		Phone:        req.Phone,
	}
	if user.Permissions == nil {
		user.Permissions = []models.Permission{}
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID)
	return user, nil
}

// Update applies mutable field changes to an account.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := validateRoleAndDepartment(req.Role, req.Department); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Name = req.Name
	user.Role = req.Role
	user.Department = req.Department
	user.Phone = req.Phone
	user.Avatar = req.Avatar

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID)
	return user, nil
}

// SetStatus activates or deactivates an account. Deactivated accounts are
// denied all access by the authorization predicate regardless of role.
func (s *UserService) SetStatus(ctx context.Context, id string, req SetUserStatusRequest, actorID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actorID == user.ID && !*req.Active {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot deactivate own account")
	}

	if err := s.repo.SetActive(ctx, id, *req.Active, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	user.IsActive = *req.Active

	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID)
	return user, nil
}

// ReplacePermissions swaps the user's capability set.
func (s *UserService) ReplacePermissions(ctx context.Context, id string, req ReplacePermissionsRequest, actorID string) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplacePermissions(ctx, id, req.Permissions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace permissions")
	}
	user.Permissions = req.Permissions

	s.audit(ctx, actorID, models.AuditActionPermissionsUpdate, user.ID)
	return user, nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, targetID string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &targetID,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.Error(err))
	}
}

// validateRoleAndDepartment enforces the closed role set and the rule that
// department-scoped roles carry a department. Civil accounts are never
// provisioned server-side: citizens interact anonymously.
func validateRoleAndDepartment(role models.UserRole, department *string) error {
	if !models.ValidRole(role) {
		return appErrors.Validation("role", "unknown role")
	}
	if role == models.RoleCivil {
		return appErrors.Validation("role", "civil accounts are not provisioned")
	}
	if role.DepartmentScoped() {
		if department == nil || *department == "" {
			return appErrors.Validation("department", "required for department-scoped roles")
		}
	}
	if department != nil && *department != "" && !models.ValidDepartment(*department) {
		return appErrors.Validation("department", "unknown department id")
	}
	return nil
}

func validatePermissions(perms []models.Permission) error {
	for _, p := range perms {
		if p.Resource == "" {
			return appErrors.Validation("permissions", "resource must not be empty")
		}
		if !models.ValidAction(p.Action) {
			return appErrors.Validation("permissions", "unknown action "+string(p.Action))
		}
	}
	return nil
}
