package mockapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	CompanyName string `json:"company_name"`
}

type profileResponse struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	FullName    *string       `json:"full_name"`
	CompanyName *string       `json:"company_name"`
	Role        string        `json:"role"`
	CreatedAt   string        `json:"created_at"`
	UsageQuota  usageResponse `json:"usage_quota"`
}

type usageResponse struct {
	PlanTier      string `json:"plan_tier"`
	AnalysesLimit int    `json:"analyses_limit"`
	AnalysesUsed  int    `json:"analyses_used"`
}

// handleToken implements the OAuth2 password grant form login.
func (s *Server) handleToken(c echo.Context) error {
	email := strings.ToLower(strings.TrimSpace(c.FormValue("username")))
	password := c.FormValue("password")

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[email]
	if u == nil || u.Password != password {
		return echo.NewHTTPError(http.StatusUnauthorized, "Incorrect username or password")
	}
	if !u.Verified {
		return echo.NewHTTPError(http.StatusForbidden, "Please verify your email before logging in")
	}
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": s.issueToken(email),
		"token_type":   "bearer",
	})
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if !strings.Contains(req.Email, "@") {
		return validationFailed(c, "email", "invalid email address")
	}
	if len(req.Password) < 8 {
		return validationFailed(c, "password", "password too short")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(req.Email)
	if _, exists := s.users[key]; exists {
		return echo.NewHTTPError(http.StatusBadRequest, "Email already registered")
	}
	u := s.newUser(req.Email, req.Password, req.FullName, req.CompanyName)
	s.users[key] = u

	if s.config.VerificationRequired {
		s.verifications[uuid.NewString()] = key
		return c.JSON(http.StatusOK, map[string]interface{}{
			"verification_required": true,
			"message":               "Registration successful. Please check your email to verify your account.",
		})
	}
	u.Verified = true
	return c.JSON(http.StatusOK, map[string]string{
		"access_token": s.issueToken(key),
		"token_type":   "bearer",
	})
}

func (s *Server) handleVerifyEmail(c echo.Context) error {
	tok := c.QueryParam("token")

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.verifications[tok]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid or expired verification token")
	}
	delete(s.verifications, tok)
	if u := s.users[email]; u != nil {
		u.Verified = true
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Email verified successfully!"})
}

func (s *Server) handleGetMe(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, profileOf(currentUser(c)))
}

func (s *Server) handlePatchMe(c echo.Context) error {
	var req struct {
		FullName    *string `json:"full_name"`
		CompanyName *string `json:"company_name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The server trims whitespace, so a saved profile can differ from what
	// the client submitted.
	u := currentUser(c)
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.CompanyName != nil {
		u.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	return c.JSON(http.StatusOK, profileOf(u))
}

// profileOf must be called with s.mu held.
func profileOf(u *user) profileResponse {
	return profileResponse{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    nullable(u.FullName),
		CompanyName: nullable(u.CompanyName),
		Role:        "user",
		CreatedAt:   u.CreatedAt.Format(time.RFC3339),
		UsageQuota: usageResponse{
			PlanTier:      u.PlanTier,
			AnalysesLimit: u.Limit,
			AnalysesUsed:  u.Used,
		},
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
