package mockapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (s *Server) handleShare(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") {
		return validationFailed(c, "email", "invalid email address")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	up, err := s.lookupOwnUpload(c)
	if err != nil {
		return err
	}
	if strings.EqualFold(email, up.Owner) {
		return echo.NewHTTPError(http.StatusBadRequest, "You cannot share an analysis with yourself")
	}
	for _, sh := range up.Shares {
		if strings.EqualFold(sh.Email, email) {
			return echo.NewHTTPError(http.StatusBadRequest, "This analysis is already shared with "+email)
		}
	}

	sh := &share{
		ID:         uuid.NewString(),
		Email:      email,
		Permission: "view",
		SharedAt:   time.Now().UTC(),
	}
	up.Shares = append(up.Shares, sh)

	sent := !s.config.ShareEmailFails
	status := "active"
	msg := "Analysis shared with " + email
	if _, registered := s.users[strings.ToLower(email)]; !registered {
		status = "pending"
		msg = "Invitation sent to " + email
	}
	if !sent {
		msg = "Access granted, but the invitation email could not be sent. Share the link manually."
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"share_id":      sh.ID,
		"upload_id":     up.ID,
		"filename":      up.Filename,
		"invited_email": email,
		"status":        status,
		"permission":    sh.Permission,
		"created_at":    sh.SharedAt.Format(time.RFC3339),
		"message":       msg,
		"email_sent":    sent,
	})
}

func (s *Server) handleListShares(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, err := s.lookupOwnUpload(c)
	if err != nil {
		return err
	}
	out := make([]map[string]interface{}, 0, len(up.Shares))
	for _, sh := range up.Shares {
		status, name := "pending", ""
		if u := s.users[strings.ToLower(sh.Email)]; u != nil {
			status, name = "active", u.FullName
		}
		out = append(out, map[string]interface{}{
			"share_id":   sh.ID,
			"email":      sh.Email,
			"full_name":  name,
			"status":     status,
			"permission": sh.Permission,
			"shared_at":  sh.SharedAt.Format(time.RFC3339),
			"expires_at": sh.SharedAt.Add(7 * 24 * time.Hour).Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"shares": out})
}

func (s *Server) handleRevokeShare(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	up, err := s.lookupOwnUpload(c)
	if err != nil {
		return err
	}
	id := c.Param("share_id")
	for i, sh := range up.Shares {
		if sh.ID == id {
			up.Shares = append(up.Shares[:i], up.Shares[i+1:]...)
			return c.JSON(http.StatusOK, map[string]string{"message": "Access revoked for " + sh.Email})
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "Share not found")
}
