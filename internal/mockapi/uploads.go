package mockapi

import (
	"bufio"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type uploadResponse struct {
	UploadID    string `json:"upload_id"`
	Filename    string `json:"filename"`
	RowCount    int    `json:"row_count"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	HasAnalysis bool   `json:"has_analysis"`
	ThemeCount  int    `json:"theme_count"`
	OwnerEmail  string `json:"owner_email,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	SharedAt    string `json:"shared_at,omitempty"`
	Permission  string `json:"permission,omitempty"`
}

func (s *Server) handleUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		return echo.NewHTTPError(http.StatusBadRequest, "Only CSV files are allowed")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	rows := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			rows++
		}
	}
	if err := sc.Err(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Could not parse CSV file")
	}
	if rows > 0 {
		rows-- // header
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := currentUser(c)
	if u.Used >= u.Limit {
		return echo.NewHTTPError(http.StatusForbidden, "Analysis limit reached for your plan. Please upgrade to continue.")
	}
	u.Used++

	up := &upload{
		ID:        uuid.NewString(),
		Owner:     strings.ToLower(u.Email),
		Filename:  fh.Filename,
		RowCount:  rows,
		CreatedAt: time.Now().UTC(),
	}
	s.uploads[up.ID] = up

	return c.JSON(http.StatusOK, map[string]interface{}{
		"upload_id":       up.ID,
		"filename":        up.Filename,
		"row_count":       up.RowCount,
		"status":          "uploaded",
		"analysis_status": "pending",
		"message":         "File uploaded successfully. Analysis in progress.",
	})
}

func (s *Server) handleListUploads(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner := strings.ToLower(currentUser(c).Email)
	out := []uploadResponse{}
	for _, up := range s.sortedUploads() {
		if up.Owner == owner {
			out = append(out, s.uploadSummary(up))
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"uploads": out})
}

func (s *Server) handleListShared(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	me := strings.ToLower(currentUser(c).Email)
	out := []uploadResponse{}
	for _, up := range s.sortedUploads() {
		for _, sh := range up.Shares {
			if strings.EqualFold(sh.Email, me) {
				r := s.uploadSummary(up)
				owner := s.users[up.Owner]
				r.OwnerEmail = up.Owner
				if owner != nil {
					r.OwnerName = owner.FullName
				}
				r.SharedAt = sh.SharedAt.Format(time.RFC3339)
				r.Permission = sh.Permission
				out = append(out, r)
				break
			}
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"uploads": out})
}

// sortedUploads returns uploads newest first. Must be called with s.mu held.
func (s *Server) sortedUploads() []*upload {
	out := make([]*upload, 0, len(s.uploads))
	for _, up := range s.uploads {
		out = append(out, up)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// uploadSummary must be called with s.mu held.
func (s *Server) uploadSummary(up *upload) uploadResponse {
	status := s.statusOf(up)
	themes := 0
	if status == "completed" {
		themes = len(sampleThemes())
	}
	return uploadResponse{
		UploadID:    up.ID,
		Filename:    up.Filename,
		RowCount:    up.RowCount,
		Status:      status,
		CreatedAt:   up.CreatedAt.Format(time.RFC3339),
		HasAnalysis: status == "completed",
		ThemeCount:  themes,
	}
}

// statusOf must be called with s.mu held.
func (s *Server) statusOf(up *upload) string {
	switch {
	case up.Polls < s.config.PendingPolls:
		return "pending"
	case up.RowCount == 0:
		return "failed"
	default:
		return "completed"
	}
}

// visible reports whether the caller owns or was shared the upload. Must be
// called with s.mu held.
func visible(up *upload, email string) bool {
	if up.Owner == strings.ToLower(email) {
		return true
	}
	for _, sh := range up.Shares {
		if strings.EqualFold(sh.Email, email) {
			return true
		}
	}
	return false
}

func (s *Server) lookupUpload(c echo.Context) (*upload, error) {
	up := s.uploads[c.Param("id")]
	if up == nil || !visible(up, currentUser(c).Email) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}
	return up, nil
}

func (s *Server) lookupOwnUpload(c echo.Context) (*upload, error) {
	up := s.uploads[c.Param("id")]
	if up == nil || up.Owner != strings.ToLower(currentUser(c).Email) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}
	return up, nil
}
