// Package mockapi provides an in-memory ProductLogik API server.
//
// It implements every endpoint the client consumes, with FastAPI style
// {"detail": ...} errors, analyses that stay pending for a configurable
// number of polls, and shares whose notification email can be made to fail.
// Package tests use it through httptest; `plk mock-server` serves it.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

// Config holds mock server configuration.
type Config struct {
	Host string
	Port int

	// PendingPolls is how many analysis fetches report "pending" before
	// the analysis completes.
	PendingPolls int
	// ShareEmailFails makes share invitations report email_sent=false.
	ShareEmailFails bool
	// VerificationRequired makes registration withhold the token until the
	// email is verified.
	VerificationRequired bool
	// AnalysesLimit is the quota given to new users.
	AnalysesLimit int
}

// DefaultConfig returns the configuration used by `plk mock-server`.
func DefaultConfig() *Config {
	return &Config{
		Host:          "127.0.0.1",
		Port:          8001,
		PendingPolls:  2,
		AnalysesLimit: 5,
	}
}

// Server is an in-memory ProductLogik API.
type Server struct {
	echo   *echo.Echo
	logger *logging.Logger
	config *Config

	mu            sync.Mutex
	users         map[string]*user   // by email
	tokens        map[string]string  // bearer token -> email
	verifications map[string]string  // verification token -> email
	uploads       map[string]*upload // by upload id
	calls         map[string]int     // "METHOD path" -> count
	lastRequestID string
}

type user struct {
	ID          string
	Email       string
	Password    string
	FullName    string
	CompanyName string
	Verified    bool
	PlanTier    string
	Limit       int
	Used        int
	CreatedAt   time.Time
}

type upload struct {
	ID        string
	Owner     string
	Filename  string
	RowCount  int
	CreatedAt time.Time
	Polls     int
	Shares    []*share
}

type share struct {
	ID         string
	Email      string
	Permission string
	SharedAt   time.Time
}

// NewServer creates a new mock API server.
func NewServer(logger *logging.Logger, cfg *Config) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.AnalysesLimit == 0 {
		cfg.AnalysesLimit = 5
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:          e,
		logger:        logger,
		config:        cfg,
		users:         make(map[string]*user),
		tokens:        make(map[string]string),
		verifications: make(map[string]string),
		uploads:       make(map[string]*upload),
		calls:         make(map[string]int),
	}

	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			s.mu.Lock()
			s.calls[c.Request().Method+" "+c.Path()]++
			s.lastRequestID = requestID
			s.mu.Unlock()

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", requestID),
			)
			return err
		}
	})

	s.registerRoutes()
	return s
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)

	api := s.echo.Group("/api")
	api.POST("/auth/token", s.handleToken)
	api.POST("/auth/register", s.handleRegister)
	api.GET("/auth/verify-email", s.handleVerifyEmail)

	authed := api.Group("", s.requireAuth)
	authed.GET("/auth/me", s.handleGetMe)
	authed.PATCH("/auth/me", s.handlePatchMe)
	authed.POST("/upload", s.handleUpload)
	authed.GET("/uploads", s.handleListUploads)
	authed.GET("/uploads/shared-with-me", s.handleListShared)
	authed.GET("/analysis/:id", s.handleGetAnalysis)
	authed.GET("/analysis/:id/export", s.handleExport)
	authed.POST("/uploads/:id/share", s.handleShare)
	authed.GET("/uploads/:id/shares", s.handleListShares)
	authed.DELETE("/uploads/:id/share/:share_id", s.handleRevokeShare)
	authed.POST("/subscription/checkout", s.handleCheckout)
	authed.POST("/subscription/portal", s.handlePortal)
}

// Handler returns the server as an http.Handler for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting mock api", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down mock api")
	return s.echo.Shutdown(ctx)
}

// AddUser creates a verified user and returns a valid bearer token for it.
func (s *Server) AddUser(email, password, fullName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = s.newUser(email, password, fullName, "")
	s.users[strings.ToLower(email)].Verified = true
	return s.issueToken(email)
}

// RevokeTokens invalidates every issued bearer token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// SetShareEmailFails toggles email delivery failure for share invitations.
func (s *Server) SetShareEmailFails(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.ShareEmailFails = fail
}

// SetPendingPolls changes how long new and existing analyses stay pending.
func (s *Server) SetPendingPolls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.PendingPolls = n
}

// Calls returns how many requests matched route, e.g. "GET /api/analysis/:id".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastRequestID returns the X-Request-ID of the most recent request.
func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequestID
}

// VerificationToken returns the pending verification token for email.
func (s *Server) VerificationToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, e := range s.verifications {
		if strings.EqualFold(e, email) {
			return tok
		}
	}
	return ""
}

// newUser must be called with s.mu held.
func (s *Server) newUser(email, password, fullName, company string) *user {
	return &user{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    password,
		FullName:    fullName,
		CompanyName: company,
		PlanTier:    "free",
		Limit:       s.config.AnalysesLimit,
		CreatedAt:   time.Now().UTC(),
	}
}

// issueToken must be called with s.mu held.
func (s *Server) issueToken(email string) string {
	tok := "plk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	s.tokens[tok] = strings.ToLower(email)
	return tok
}

const userKey = "plk.user"

// requireAuth resolves the bearer token to a user.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get(echo.HeaderAuthorization)
		tok := strings.TrimPrefix(auth, "Bearer ")
		if tok == "" || tok == auth {
			return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
		}
		s.mu.Lock()
		email, ok := s.tokens[tok]
		u := s.users[email]
		s.mu.Unlock()
		if !ok || u == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Could not validate credentials")
		}
		c.Set(userKey, u)
		return next(c)
	}
}

func currentUser(c echo.Context) *user {
	u, _ := c.Get(userKey).(*user)
	return u
}

// validationError mirrors the 422 body produced by pydantic validators.
type validationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func validationFailed(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
		"detail": []validationError{{
			Loc:  []string{"body", field},
			Msg:  "Value error, " + msg,
			Type: "value_error",
		}},
	})
}

// handleError renders every error as {"detail": "..."}.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		s.logger.Error(c.Request().Context(), "handler failed", zap.Error(err))
	}
	if err := c.JSON(code, map[string]string{"detail": msg}); err != nil {
		s.logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(err))
	}
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
