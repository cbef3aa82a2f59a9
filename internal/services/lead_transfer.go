package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ajharbinger/crm-pipeline/internal/errors"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// ExportFormat specifies the format for exporting leads
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatCSV  ExportFormat = "csv"
)

// exportPageSize is the repository page size used while exporting.
const exportPageSize = 500

// maxImportRows caps a single import request.
const maxImportRows = 1000

// ImportResult reports a bulk import.
type ImportResult struct {
	Imported int           `json:"imported_count"`
	Failed   int           `json:"error_count"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected row. Rows are numbered from 1.
type ImportError struct {
	Row   int    `json:"row"`
	Email string `json:"email,omitempty"`
	Error string `json:"error"`
}

// Import creates each row as a lead. A bad row is reported and skipped; it
// does not stop the rest.
func (s *leadServiceImpl) Import(ctx context.Context, rows []models.LeadInput) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInput("no leads to import", nil).WithOperation("ImportLeads")
	}
	if len(rows) > maxImportRows {
		return nil, errors.InvalidInput(fmt.Sprintf("at most %d leads per import", maxImportRows), nil).WithOperation("ImportLeads")
	}

	result := &ImportResult{Errors: []ImportError{}}
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, errors.ServiceError("import interrupted", err).WithOperation("ImportLeads")
		}
		if _, err := s.Create(ctx, row); err != nil {
			result.Failed++
			ie := ImportError{Row: i + 1, Error: importMessage(err)}
			if row.Email != nil {
				ie.Email = *row.Email
			}
			result.Errors = append(result.Errors, ie)
			continue
		}
		result.Imported++
	}

	s.Logger.Info("Lead import finished", "imported", result.Imported, "failed", result.Failed)
	return result, nil
}

func importMessage(err error) string {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.Message
	}
	return err.Error()
}

// Export renders every lead matching filters as JSON or CSV.
func (s *leadServiceImpl) Export(ctx context.Context, filters models.LeadFilters, format ExportFormat) ([]byte, error) {
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatCSV {
		return nil, errors.InvalidInput(fmt.Sprintf("unsupported export format: %s", format), nil).WithOperation("ExportLeads")
	}

	var leads []models.Lead
	filters.Limit, filters.Offset = exportPageSize, 0
	for {
		page, total, err := s.Repos.Leads.List(ctx, filters)
		if err != nil {
			return nil, repoError(err, "leads", "ExportLeads")
		}
		leads = append(leads, page...)
		if len(page) < exportPageSize || len(leads) >= total {
			break
		}
		filters.Offset += exportPageSize
	}

	switch format {
	case FormatCSV:
		return exportToCSV(leads)
	default:
		return s.exportToJSON(leads)
	}
}

func (s *leadServiceImpl) exportToJSON(leads []models.Lead) ([]byte, error) {
	if leads == nil {
		leads = []models.Lead{}
	}
	exportData := map[string]interface{}{
		"leads":       leads,
		"count":       len(leads),
		"exported_at": s.Now().UTC(),
	}
	return json.MarshalIndent(exportData, "", "  ")
}

var csvHeaders = []string{
	"id", "first_name", "last_name", "email", "phone", "company", "job_title",
	"industry", "source", "status", "score", "budget", "timeline", "website",
	"assigned_to", "scored_at", "created_at",
}

func exportToCSV(leads []models.Lead) ([]byte, error) {
	var output strings.Builder
	writer := csv.NewWriter(&output)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, err
	}

	for _, lead := range leads {
		row := []string{
			lead.ID.String(),
			lead.FirstName,
			lead.LastName,
			lead.Email,
			lead.Phone,
			lead.Company,
			lead.JobTitle,
			lead.Industry,
			lead.Source,
			lead.Status,
			strconv.Itoa(lead.Score),
			formatBudget(lead),
			lead.Timeline,
			lead.Website,
			formatAssignee(lead),
			formatNullTime(lead.ScoredAt),
			lead.CreatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(output.String()), nil
}

func formatBudget(lead models.Lead) string {
	if !lead.Budget.Valid {
		return ""
	}
	return lead.Budget.Decimal.StringFixed(2)
}

func formatAssignee(lead models.Lead) string {
	if lead.AssignedTo == nil {
		return ""
	}
	return lead.AssignedTo.String()
}

func formatNullTime(val *time.Time) string {
	if val == nil {
		return ""
	}
	return val.Format(time.RFC3339)
}
