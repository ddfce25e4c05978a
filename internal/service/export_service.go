package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/civicdesk/civicdesk-api/internal/access"
	"github.com/civicdesk/civicdesk-api/internal/models"
	appErrors "github.com/civicdesk/civicdesk-api/pkg/errors"
	"github.com/civicdesk/civicdesk-api/pkg/export"
)

type exportComplaintSource interface {
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
}

// ExportFormat selects the rendering target.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus response metadata.
type ExportResult struct {
	Content     []byte
	Filename    string
	ContentType string
}

// ExportService renders complaint listings to CSV or PDF. The department
// restriction is pushed down to the store; the remaining criteria are applied
// in memory with the same filter semantics the listing endpoint uses.
type ExportService struct {
	source  exportComplaintSource
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
	maxRows int
}

// NewExportService constructs an ExportService.
func NewExportService(source exportComplaintSource, logger *zap.Logger, maxRows int) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ExportService{
		source:  source,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
		maxRows: maxRows,
	}
}

// Export renders the complaints visible to the actor under the given filter.
func (s *ExportService) Export(ctx context.Context, actor *models.User, filter models.ComplaintFilter, format ExportFormat) (*ExportResult, error) {
	if actor != nil && actor.Role.DepartmentScoped() {
		filter.Department = actor.DepartmentID()
	}
	if d := access.CanPerform(actor, "complaints", models.ActionRead, filter.Department); !d.Allowed {
		return nil, d.Err()
	}

	fetch := models.ComplaintFilter{
		Department: filter.Department,
		Page:       1,
		PageSize:   100,
	}
	var complaints []models.Complaint
	for len(complaints) < s.maxRows {
		batch, total, err := s.source.List(ctx, fetch)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch complaints for export")
		}
		complaints = append(complaints, batch...)
		if len(complaints) >= total || len(batch) == 0 {
			break
		}
		fetch.Page++
	}
	if len(complaints) > s.maxRows {
		complaints = complaints[:s.maxRows]
	}

	complaints = models.FilterComplaints(complaints, filter)
	dataset := buildComplaintDataset(complaints)

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case FormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("complaints-%s.csv", stamp),
			ContentType: "text/csv",
		}, nil
	case FormatPDF:
		content, err := s.pdf.Render(dataset, "Complaint Register")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			Content:     content,
			Filename:    fmt.Sprintf("complaints-%s.pdf", stamp),
			ContentType: "application/pdf",
		}, nil
	default:
		return nil, appErrors.Validation("format", "must be csv or pdf")
	}
}

func buildComplaintDataset(complaints []models.Complaint) export.Dataset {
	headers := []string{"ID", "Title", "Department", "Category", "Priority", "Status", "Area", "Anonymous", "Created At"}
	rows := make([]map[string]string, 0, len(complaints))
	for _, c := range complaints {
		rows = append(rows, map[string]string{
			"ID":         c.ID,
			"Title":      c.Title,
			"Department": c.Department,
			"Category":   c.Category,
			"Priority":   string(c.Priority),
			"Status":     string(c.Status),
			"Area":       c.Location.Area,
			"Anonymous":  strconv.FormatBool(c.Anonymous),
			"Created At": c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
