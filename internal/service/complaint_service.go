package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/access"
	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	Transition(ctx context.Context, complaintID string, entry *models.StatusHistoryEntry) error
	Assign(ctx context.Context, complaintID string, assignee *string) error
}

type staffDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateComplaintRequest is the public submission payload. No authentication
// or permission check applies: filing a complaint is a public capability.
type CreateComplaintRequest struct {
	Title       string                   `json:"title" validate:"required,max=200"`
	Description string                   `json:"description" validate:"required,max=2000"`
	Department  string                   `json:"department" validate:"required"`
	Category    string                   `json:"category" validate:"required"`
	Priority    models.ComplaintPriority `json:"priority"`
	Location    CreateComplaintLocation  `json:"location"`
	Anonymous   *bool                    `json:"anonymous"`
}

// CreateComplaintLocation carries the submission location.
type CreateComplaintLocation struct {
	Address string   `json:"address" validate:"required"`
	Area    string   `json:"area" validate:"required"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// TransitionRequest moves a complaint to a new lifecycle status.
type TransitionRequest struct {
	Status models.ComplaintStatus `json:"status" validate:"required"`
	Notes  *string                `json:"notes"`
}

// AssignRequest sets or clears the complaint assignee.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// ComplaintService owns the complaint lifecycle: public creation, the single
// status mutation path with its audit history, department-scoped listing and
// assignment. Every staff operation is gated through access.CanPerform.
type ComplaintService struct {
	repo      complaintRepository
	staff     staffDirectory
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewComplaintService constructs a ComplaintService.
func NewComplaintService(repo complaintRepository, staff staffDirectory, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{repo: repo, staff: staff, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and stores a new complaint. Status starts at submitted
// with an empty history; the creation state itself is never recorded as a
// history entry.
func (s *ComplaintService) Create(ctx context.Context, req CreateComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !models.ValidDepartment(req.Department) {
		return nil, appErrors.Validation("department", "unknown department id")
	}
	if !models.ValidCategory(req.Category) {
		return nil, appErrors.Validation("category", "unknown category")
	}
	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, appErrors.Validation("priority", "unknown priority")
	}

	anonymous := true
	if req.Anonymous != nil {
		anonymous = *req.Anonymous
	}

	complaint := &models.Complaint{
		Title:       req.Title,
		Description: req.Description,
		Department:  req.Department,
		Category:    req.Category,
		Priority:    priority,
		Status:      models.StatusSubmitted,
		Location: models.Location{
			Address: req.Location.Address,
			Area:    req.Location.Area,
			Lat:     req.Location.Lat,
			Lng:     req.Location.Lng,
		},
		Anonymous:     anonymous,
		StatusHistory: []models.StatusHistoryEntry{},
	}

	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store complaint")
	}

	s.logger.Info("complaint created",
		zap.String("complaint_id", complaint.ID),
		zap.String("department", complaint.Department),
		zap.Bool("anonymous", complaint.Anonymous),
	)
	return complaint, nil
}

// Get returns a complaint with its history, gated by read access in the
// complaint's department.
func (s *ComplaintService) Get(ctx context.Context, actor *models.User, id string) (*models.Complaint, error) {
	complaint, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.CanPerform(actor, "complaints", models.ActionRead, complaint.Department); !d.Allowed {
		return nil, d.Err()
	}
	return complaint, nil
}

// List returns complaints visible to the actor. Department-scoped roles are
// pre-restricted to their own department before any filter applies; admins
// may narrow to any department.
func (s *ComplaintService) List(ctx context.Context, actor *models.User, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	if actor != nil && actor.Role.DepartmentScoped() {
		filter.Department = actor.DepartmentID()
	}
	if d := access.CanPerform(actor, "complaints", models.ActionRead, filter.Department); !d.Allowed {
		return nil, nil, d.Err()
	}

	complaints, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return complaints, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Transition is the single mutation path for complaint status. It requires
// update access in the complaint's department, validates the target status,
// sets it and appends exactly one history entry. Re-stamping the current
// status is permitted and still recorded, so the trail keeps every action.
func (s *ComplaintService) Transition(ctx context.Context, actor *models.User, complaintID string, req TransitionRequest) (*models.Complaint, error) {
	complaint, err := s.fetch(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	if d := access.CanPerform(actor, "complaints", models.ActionUpdate, complaint.Department); !d.Allowed {
		return nil, d.Err()
	}

	if !models.ValidStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "invalid complaint status: "+string(req.Status))
	}

	entry := &models.StatusHistoryEntry{
		Status:    req.Status,
		ChangedBy: &actor.ID,
		ChangedAt: s.now(),
		Notes:     req.Notes,
	}
	if err := s.repo.Transition(ctx, complaint.ID, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to transition complaint")
	}

	complaint.Status = req.Status
	complaint.UpdatedAt = entry.ChangedAt
	complaint.StatusHistory = append(complaint.StatusHistory, *entry)

	s.logger.Info("complaint status changed",
		zap.String("complaint_id", complaint.ID),
		zap.String("status", string(req.Status)),
		zap.String("changed_by", actor.ID),
	)
	return complaint, nil
}

// Assign sets or clears the complaint assignee. The assignee must be an
// active staff account; department-scoped assignees must belong to the
// complaint's department.
func (s *ComplaintService) Assign(ctx context.Context, actor *models.User, complaintID string, req AssignRequest) (*models.Complaint, error) {
	complaint, err := s.fetch(ctx, complaintID)
	if err != nil {
		return nil, err
	}

	if d := access.CanPerform(actor, "complaints", models.ActionUpdate, complaint.Department); !d.Allowed {
		return nil, d.Err()
	}

	if req.AssigneeID != nil {
		assignee, err := s.staff.FindByID(ctx, *req.AssigneeID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "assignee not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignee")
		}
		if !assignee.IsActive || !access.CanAccessAdmin(assignee) {
			return nil, appErrors.Validation("assignee_id", "assignee is not an active staff account")
		}
		if assignee.Role.DepartmentScoped() && assignee.DepartmentID() != complaint.Department {
			return nil, appErrors.Validation("assignee_id", "assignee belongs to a different department")
		}
	}

	if err := s.repo.Assign(ctx, complaint.ID, req.AssigneeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign complaint")
	}
	complaint.AssignedTo = req.AssigneeID
	return complaint, nil
}

func (s *ComplaintService) fetch(ctx context.Context, id string) (*models.Complaint, error) {
	complaint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	return complaint, nil
}

// validationError maps a validator error to the field-carrying domain error.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		switch first.Tag() {
		case "required":
			return appErrors.Validation(first.Field(), "is required")
		case "max":
			return appErrors.Validation(first.Field(), "exceeds maximum length of "+first.Param())
		default:
			return appErrors.Validation(first.Field(), "failed "+first.Tag()+" validation")
		}
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
}
