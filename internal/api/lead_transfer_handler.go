package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ajharbinger/crm-pipeline/internal/models"
	"github.com/ajharbinger/crm-pipeline/internal/services"
)

// ImportRequest is the JSON form of a bulk import.
type ImportRequest struct {
	Leads []models.LeadInput `json:"leads" binding:"required"`
}

// ImportLeads creates leads from a JSON body, a text/csv body or a
// multipart "file" upload. Rows that fail are reported, not fatal.
func (h *LeadsHandler) ImportLeads(c *gin.Context) {
	var rows []models.LeadInput

	switch c.ContentType() {
	case "text/csv":
		parsed, err := parseLeadCSV(c.Request.Body)
		if err != nil {
			badRequest(c, "Failed to parse CSV", err)
			return
		}
		rows = parsed
	case "multipart/form-data":
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			badRequest(c, "No CSV file provided", nil)
			return
		}
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			badRequest(c, "File must be a CSV", nil)
			return
		}
		parsed, err := parseLeadCSV(file)
		if err != nil {
			badRequest(c, "Failed to parse CSV", err)
			return
		}
		rows = parsed
	default:
		var req ImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid import format", err)
			return
		}
		rows = req.Leads
	}

	result, err := h.leads.Import(c.Request.Context(), rows)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportLeads downloads every lead matching the filters as JSON or CSV
func (h *LeadsHandler) ExportLeads(c *gin.Context) {
	var filters models.LeadFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		badRequest(c, "Invalid query parameters", err)
		return
	}
	format := services.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(services.FormatJSON))))

	data, err := h.leads.Export(c.Request.Context(), filters, format)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := "leads_" + time.Now().UTC().Format("2006-01-02_15-04-05") + "." + string(format)
	contentType := "application/json"
	if format == services.FormatCSV {
		contentType = "text/csv"
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// parseLeadCSV reads a header row naming lead fields and one lead per row.
// Unknown columns are ignored; empty cells leave the field unset.
func parseLeadCSV(r io.Reader) ([]models.LeadInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make([]string, len(header))
	hasEmail := false
	for i, name := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(name))
		hasEmail = hasEmail || columns[i] == "email"
	}
	if !hasEmail {
		return nil, fmt.Errorf("CSV header must include an email column")
	}

	var rows []models.LeadInput
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var in models.LeadInput
		for i, cell := range record {
			if i >= len(columns) || strings.TrimSpace(cell) == "" {
				continue
			}
			if err := setLeadColumn(&in, columns[i], strings.TrimSpace(cell)); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		rows = append(rows, in)
	}
	return rows, nil
}

func setLeadColumn(in *models.LeadInput, column, value string) error {
	v := value
	switch column {
	case "first_name":
		in.FirstName = &v
	case "last_name":
		in.LastName = &v
	case "email":
		in.Email = &v
	case "phone":
		in.Phone = &v
	case "company":
		in.Company = &v
	case "job_title":
		in.JobTitle = &v
	case "industry":
		in.Industry = &v
	case "source":
		in.Source = &v
	case "status":
		in.Status = &v
	case "timeline":
		in.Timeline = &v
	case "notes":
		in.Notes = &v
	case "website":
		in.Website = &v
	case "budget":
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid budget %q", v)
		}
		in.Budget = &d
	case "assigned_to":
		id, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("invalid assigned_to %q", v)
		}
		in.AssignedTo = &id
	}
	return nil
}
