package mockapi

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// sampleThemes deliberately mixes the shapes the real API has returned:
// name or title, summary or description, count or mentions, and evidence as
// a list or a single string.
func sampleThemes() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"name":       "Onboarding friction",
			"sentiment":  "Negative",
			"confidence": 87,
			"count":      42,
			"summary":    "New users struggle to connect their first data source.",
			"evidence":   []string{"Setup took me an hour", "Couldn't find the import button"},
		},
		{
			"title":       "Reporting praise",
			"sentiment":   "positive",
			"confidence":  78,
			"mentions":    17,
			"description": "Customers value the weekly summary emails.",
			"evidence":    "The weekly report is the best part",
		},
		{
			"name":       "Billing confusion",
			"sentiment":  "Critical",
			"confidence": 64,
			"count":      9,
			"summary":    "Invoices do not match the plan shown in settings.",
			"evidence":   []string{"I was charged twice"},
		},
	}
}

func (s *Server) handleGetAnalysis(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, err := s.lookupUpload(c)
	if err != nil {
		return err
	}
	status := s.statusOf(up)
	up.Polls++

	base := map[string]interface{}{
		"upload_id": up.ID,
		"filename":  up.Filename,
		"row_count": up.RowCount,
		"status":    status,
	}
	switch status {
	case "pending":
		base["message"] = "Analysis is still in progress. Please check back shortly."
	case "failed":
		base["themes"] = []interface{}{}
		base["has_themes"] = false
		base["message"] = "No feedback rows were found in this file."
	default:
		base["themes"] = sampleThemes()
		base["has_themes"] = true
		base["executive_summary"] = "Feedback centres on onboarding friction, with strong praise for reporting."
		base["confidence_score"] = 82.5
		base["processing_time_ms"] = 1840
		base["created_at"] = up.CreatedAt.Format(time.RFC3339)
		base["agile_risks"] = map[string]interface{}{"velocity": "medium"}
	}
	return c.JSON(http.StatusOK, base)
}

func (s *Server) handleExport(c echo.Context) error {
	s.mu.Lock()
	up, err := s.lookupUpload(c)
	var status, filename string
	if err == nil {
		status = s.statusOf(up)
		filename = up.Filename
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if status != "completed" {
		return echo.NewHTTPError(http.StatusBadRequest, "Analysis is not completed yet")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+strings.TrimSuffix(filename, filepath.Ext(filename))+`-analysis.pdf"`)
	return c.Blob(http.StatusOK, "application/pdf", renderPDF("ProductLogik analysis: "+filename))
}
