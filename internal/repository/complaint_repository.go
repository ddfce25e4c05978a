package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicdesk/civicdesk-api/internal/models"
)

const complaintColumns = "id, title, description, department, category, priority, status, address, area, lat, lng, anonymous, assigned_to, created_at, updated_at"

// ComplaintRepository provides persistence for complaints and their status
// history. Status changes go through Transition so the history append and the
// status update commit atomically.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository creates the repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

// Create inserts a new complaint with an empty status history.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now
	complaint.SyncLocation()

	const query = `INSERT INTO complaints (id, title, description, department, category, priority, status, address, area, lat, lng, anonymous, assigned_to, created_at, updated_at)
VALUES (:id, :title, :description, :department, :category, :priority, :status, :address, :area, :lat, :lng, :anonymous, :assigned_to, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// GetByID returns a complaint with its full status history, oldest first.
func (r *ComplaintRepository) GetByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := fmt.Sprintf("SELECT %s FROM complaints WHERE id = $1 LIMIT 1", complaintColumns)
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find complaint by id: %w", err)
	}
	complaint.SyncLocation()

	const historyQuery = `SELECT id, complaint_id, status, changed_by, changed_at, notes FROM complaint_status_history WHERE complaint_id = $1 ORDER BY changed_at ASC, id ASC`
	history := []models.StatusHistoryEntry{}
	if err := r.db.SelectContext(ctx, &history, historyQuery, id); err != nil {
		return nil, fmt.Errorf("load status history: %w", err)
	}
	complaint.StatusHistory = history

	return &complaint, nil
}

// List returns complaints matching the filter with a total count. Criteria
// compose as set intersection; relative ordering is stable (newest first).
// Status histories are not hydrated for listings.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	baseQuery := `FROM complaints WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}
	if filter.Area != "" {
		conditions = append(conditions, fmt.Sprintf("area = $%d", len(args)+1))
		args = append(args, filter.Area)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d OR LOWER(address) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", complaintColumns, baseQuery, pageSize, offset)

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	for i := range complaints {
		complaints[i].SyncLocation()
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	return complaints, total, nil
}

// Transition sets the complaint status and appends the matching history row
// in a single transaction.
func (r *ComplaintRepository) Transition(ctx context.Context, complaintID string, entry *models.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ComplaintID = complaintID
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE complaints SET status = $2, updated_at = $3 WHERE id = $1`, complaintID, entry.Status, entry.ChangedAt); err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}

	const insert = `INSERT INTO complaint_status_history (id, complaint_id, status, changed_by, changed_at, notes)
VALUES (:id, :complaint_id, :status, :changed_by, :changed_at, :notes)`
	if _, err := tx.NamedExecContext(ctx, insert, entry); err != nil {
		return fmt.Errorf("append status history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

// Assign updates the assigned_to reference. A nil assignee unassigns.
func (r *ComplaintRepository) Assign(ctx context.Context, complaintID string, assignee *string) error {
	const query = `UPDATE complaints SET assigned_to = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, complaintID, assignee, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign complaint: %w", err)
	}
	return nil
}

// Stats aggregates simple complaint counts, optionally scoped to one
// department (empty means city-wide).
func (r *ComplaintRepository) Stats(ctx context.Context, department string) (*models.ComplaintStats, error) {
	stats := &models.ComplaintStats{
		ByStatus:     make(map[models.ComplaintStatus]int),
		ByDepartment: make(map[string]int),
		ByPriority:   make(map[models.ComplaintPriority]int),
	}

	where := ""
	var args []interface{}
	if department != "" {
		where = " WHERE department = $1"
		args = append(args, department)
	}

	type row struct {
		Department string                   `db:"department"`
		Status     models.ComplaintStatus   `db:"status"`
		Priority   models.ComplaintPriority `db:"priority"`
		Count      int                      `db:"count"`
	}
	query := fmt.Sprintf("SELECT department, status, priority, COUNT(*) AS count FROM complaints%s GROUP BY department, status, priority", where)
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("aggregate complaint stats: %w", err)
	}

	for _, r := range rows {
		stats.Total += r.Count
		stats.ByStatus[r.Status] += r.Count
		stats.ByDepartment[r.Department] += r.Count
		stats.ByPriority[r.Priority] += r.Count
	}
	return stats, nil
}
