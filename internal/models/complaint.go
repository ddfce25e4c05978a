package models

import "time"

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "submitted"
	StatusInReview   ComplaintStatus = "in-review"
	StatusInProgress ComplaintStatus = "in-progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusClosed     ComplaintStatus = "closed"
)

// ComplaintStatuses lists the closed status set in presentation order.
var ComplaintStatuses = []ComplaintStatus{
	StatusSubmitted,
	StatusInReview,
	StatusInProgress,
	StatusResolved,
	StatusClosed,
}

// ValidStatus reports whether the value belongs to the closed status set.
// Any valid status may transition to any other; there is no terminal state,
// so a closed complaint can be reopened.
func ValidStatus(s ComplaintStatus) bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// ComplaintPriority orders triage urgency.
type ComplaintPriority string

const (
	PriorityLow    ComplaintPriority = "low"
	PriorityMedium ComplaintPriority = "medium"
	PriorityHigh   ComplaintPriority = "high"
	PriorityUrgent ComplaintPriority = "urgent"
)

// ValidPriority reports whether the value belongs to the closed priority set.
func ValidPriority(p ComplaintPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ComplaintCategories is the closed category set.
var ComplaintCategories = []string{
	"Service Disruption",
	"Infrastructure Issue",
	"Safety Concern",
	"Quality Issue",
	"Accessibility Problem",
	"Staff Behavior",
	"Policy Concern",
	"Other",
}

// ValidCategory reports whether the category belongs to the closed set.
func ValidCategory(category string) bool {
	for _, c := range ComplaintCategories {
		if c == category {
			return true
		}
	}
	return false
}

// Location pinpoints where the complaint applies. Coordinates are stored but
// never queried spatially.
type Location struct {
	Address string   `json:"address"`
	Area    string   `json:"area"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// StatusHistoryEntry is one audit record of a status transition. The initial
// submitted state set at creation is never recorded here.
type StatusHistoryEntry struct {
	ID          string          `db:"id" json:"-"`
	ComplaintID string          `db:"complaint_id" json:"-"`
	Status      ComplaintStatus `db:"status" json:"status"`
	ChangedBy   *string         `db:"changed_by" json:"changed_by,omitempty"`
	ChangedAt   time.Time       `db:"changed_at" json:"changed_at"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
}

// Complaint is a citizen grievance against a municipal department.
type Complaint struct {
	ID            string               `db:"id" json:"id"`
	Title         string               `db:"title" json:"title"`
	Description   string               `db:"description" json:"description"`
	Department    string               `db:"department" json:"department"`
	Category      string               `db:"category" json:"category"`
	Priority      ComplaintPriority    `db:"priority" json:"priority"`
	Status        ComplaintStatus      `db:"status" json:"status"`
	Address       string               `db:"address" json:"-"`
	Area          string               `db:"area" json:"-"`
	Lat           *float64             `db:"lat" json:"-"`
	Lng           *float64             `db:"lng" json:"-"`
	Location      Location             `db:"-" json:"location"`
	Anonymous     bool                 `db:"anonymous" json:"anonymous"`
	AssignedTo    *string              `db:"assigned_to" json:"assigned_to,omitempty"`
	StatusHistory []StatusHistoryEntry `db:"-" json:"status_history"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// SyncLocation copies the flattened storage columns into the nested Location
// view, and vice versa. Keeps the JSON shape and the table layout in step.
func (c *Complaint) SyncLocation() {
	if c.Location.Address == "" && c.Address != "" {
		c.Location = Location{Address: c.Address, Area: c.Area, Lat: c.Lat, Lng: c.Lng}
		return
	}
	c.Address = c.Location.Address
	c.Area = c.Location.Area
	c.Lat = c.Location.Lat
	c.Lng = c.Location.Lng
}

// ComplaintFilter narrows complaint listings. Criteria compose as set
// intersection; absent criteria are no-ops.
type ComplaintFilter struct {
	Department string
	Status     *ComplaintStatus
	Priority   *ComplaintPriority
	Area       string
	Search     string
	Page       int
	PageSize   int
}

// ComplaintStats carries the simple counts served by the stats overview.
type ComplaintStats struct {
	Total        int                       `json:"total"`
	ByStatus     map[ComplaintStatus]int   `json:"by_status"`
	ByDepartment map[string]int            `json:"by_department"`
	ByPriority   map[ComplaintPriority]int `json:"by_priority"`
}
