package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/productlogik/plk/internal/logging"
	"github.com/productlogik/plk/internal/mockapi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

type fixture struct {
	mock   *mockapi.Server
	srv    *httptest.Server
	token  atomic.Value
	client *Client
	// unauthorized counts invocations of the unauthorized handler.
	unauthorized atomic.Int32
}

func newFixture(t *testing.T, cfg *mockapi.Config, opts ...Option) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &mockapi.Config{PendingPolls: 1}
	}
	f := &fixture{mock: mockapi.NewServer(nil, cfg)}
	f.srv = httptest.NewServer(f.mock.Handler())
	t.Cleanup(f.srv.Close)
	f.token.Store("")

	base := []Option{
		WithBaseURL(f.srv.URL),
		WithTokenProvider(TokenFunc(func() string { return f.token.Load().(string) })),
		WithUnauthorizedHandler(func(context.Context) {
			f.unauthorized.Add(1)
			f.token.Store("")
		}),
		WithRateLimit(1000, 100),
	}
	f.client = NewClient(append(base, opts...)...)
	return f
}

func (f *fixture) loginAs(email string) {
	f.token.Store(f.mock.AddUser(email, "correct-horse", "Ada"))
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:8001/api":  "http://127.0.0.1:8001/api",
		"http://127.0.0.1:8001/api/": "http://127.0.0.1:8001/api",
		"https://plk.example.com":    "https://plk.example.com/api",
		"https://plk.example.com/":   "https://plk.example.com/api",
		"":                           DefaultBaseURL,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeBaseURL(in), in)
	}

	c := NewClient(WithBaseURL("https://plk.example.com"))
	assert.Equal(t, "https://plk.example.com/api", c.BaseURL())
	assert.Equal(t, "https://plk.example.com", c.Origin())
}

func TestNewClientDoesNotMutateHTTPClient(t *testing.T) {
	hc := &http.Client{}
	NewClient(WithHTTPClient(hc))
	assert.Nil(t, hc.Transport)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddUser("ada@example.com", "correct-horse", "Ada")

	tok, err := f.client.Login(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, "bearer", tok.TokenType)
}

func TestLogin_BadCredentialsDoNotTriggerUnauthorizedHandler(t *testing.T) {
	f := newFixture(t, nil)
	f.mock.AddUser("ada@example.com", "correct-horse", "Ada")

	_, err := f.client.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Incorrect username or password", err.Error())
	assert.Zero(t, f.unauthorized.Load())
}

func TestRegister(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.client.Register(context.Background(), RegisterRequest{
		Email: "new@example.com", Password: "longenough", FullName: "New",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.False(t, res.VerificationRequired)
}

func TestRegister_ValidationMessage(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.Register(context.Background(), RegisterRequest{
		Email: "new@example.com", Password: "short",
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "password too short", err.Error())
}

func TestRegister_VerificationFlow(t *testing.T) {
	f := newFixture(t, &mockapi.Config{VerificationRequired: true})
	ctx := context.Background()

	res, err := f.client.Register(ctx, RegisterRequest{Email: "v@example.com", Password: "longenough"})
	require.NoError(t, err)
	assert.True(t, res.VerificationRequired)
	assert.Empty(t, res.AccessToken)

	_, err = f.client.VerifyEmail(ctx, "bogus")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired verification token", err.Error())

	msg, err := f.client.VerifyEmail(ctx, f.mock.VerificationToken("v@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "Email verified successfully!", msg)

	_, err = f.client.Login(ctx, "v@example.com", "longenough")
	require.NoError(t, err)
}

func TestProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.loginAs("ada@example.com")
	ctx := context.Background()

	p, err := f.client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	require.NotNil(t, p.UsageQuota)
	assert.Equal(t, "free", p.UsageQuota.PlanTier)

	p, err = f.client.UpdateProfile(ctx, ProfileUpdate{FullName: "  Ada Lovelace ", CompanyName: "Analytical"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, "Analytical", p.CompanyName)
}

func TestUploadAndAnalysisLifecycle(t *testing.T) {
	f := newFixture(t, &mockapi.Config{PendingPolls: 1})
	f.loginAs("ada@example.com")
	ctx := context.Background()

	res, err := f.client.Upload(ctx, "feedback.csv", strings.NewReader("text\nslow\nfast\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	require.NotEmpty(t, res.UploadID)

	uploads, err := f.client.ListUploads(ctx)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "feedback.csv", uploads[0].Filename)
	assert.False(t, uploads[0].Shared())

	_, err = f.client.ExportAnalysis(ctx, res.UploadID)
	require.Error(t, err)
	assert.Equal(t, "Analysis is not completed yet", err.Error())

	a, err := f.client.GetAnalysis(ctx, res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	a, err = f.client.GetAnalysis(ctx, res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, a.Status)
	require.Len(t, a.Themes, 3)
	assert.Equal(t, "Reporting praise", a.Themes[1].Name)
	assert.Equal(t, 17, a.Themes[1].Count)
	assert.NotEmpty(t, a.ExecutiveSummary)

	again, err := f.client.GetAnalysis(ctx, res.UploadID)
	require.NoError(t, err)
	assert.Equal(t, a, again)

	pdf, err := f.client.ExportAnalysis(ctx, res.UploadID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))
}

func TestUpload_DomainError(t *testing.T) {
	f := newFixture(t, nil)
	f.loginAs("ada@example.com")

	_, err := f.client.Upload(context.Background(), "notes.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "Only CSV files are allowed", err.Error())
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestShareLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	f.loginAs("owner@example.com")
	ctx := context.Background()

	up, err := f.client.Upload(ctx, "f.csv", strings.NewReader("h\nrow\n"))
	require.NoError(t, err)

	res, err := f.client.ShareUpload(ctx, up.UploadID, "friend@example.com")
	require.NoError(t, err)
	assert.True(t, res.EmailSent)

	f.mock.SetShareEmailFails(true)
	res, err = f.client.ShareUpload(ctx, up.UploadID, "other@example.com")
	require.NoError(t, err)
	assert.False(t, res.EmailSent)
	assert.NotEmpty(t, res.ShareID)
	assert.Equal(t, "other@example.com", res.InvitedEmail)

	shares, err := f.client.ListShares(ctx, up.UploadID)
	require.NoError(t, err)
	require.Len(t, shares, 2)

	msg, err := f.client.RevokeShare(ctx, up.UploadID, res.ShareID)
	require.NoError(t, err)
	assert.Contains(t, msg, "other@example.com")

	shares, err = f.client.ListShares(ctx, up.UploadID)
	require.NoError(t, err)
	assert.Len(t, shares, 1)

	// The recipient sees it in their shared list.
	f.loginAs("friend@example.com")
	shared, err := f.client.ListSharedUploads(ctx)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.True(t, shared[0].Shared())
	assert.Equal(t, "owner@example.com", shared[0].OwnerEmail)
}

func TestBilling(t *testing.T) {
	f := newFixture(t, nil)
	f.loginAs("ada@example.com")
	ctx := context.Background()

	u, err := f.client.Checkout(ctx, "price_pro_monthly")
	require.NoError(t, err)
	assert.Contains(t, u, "price_pro_monthly")

	_, err = f.client.BillingPortal(ctx)
	require.Error(t, err)
	assert.Equal(t, "No active subscription found", err.Error())

	f.mock.SetPlan("ada@example.com", "pro", 100)
	u, err = f.client.BillingPortal(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, u)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	h, err := f.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
}

func TestUnauthorizedInvokesHandlerForEveryAuthenticatedCall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	calls := map[string]func() error{
		"me":       func() error { _, err := f.client.Me(ctx); return err },
		"uploads":  func() error { _, err := f.client.ListUploads(ctx); return err },
		"analysis": func() error { _, err := f.client.GetAnalysis(ctx, "x"); return err },
		"export":   func() error { _, err := f.client.ExportAnalysis(ctx, "x"); return err },
		"share":    func() error { _, err := f.client.ShareUpload(ctx, "x", "a@b.com"); return err },
		"checkout": func() error { _, err := f.client.Checkout(ctx, "price_x"); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			f.token.Store("expired-token")
			before := f.unauthorized.Load()

			err := call()
			require.Error(t, err)
			assert.True(t, IsUnauthorized(err))
			assert.Equal(t, before+1, f.unauthorized.Load())
			assert.Empty(t, f.token.Load())
		})
	}
}

func TestNoSessionSkipsRequest(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.client.ListUploads(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, f.mock.Calls("GET /api/uploads"))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindUnauthorized, apiErr.Kind)
	assert.Equal(t, MsgNoSession, apiErr.Message)
	assert.Zero(t, f.unauthorized.Load(), "no server rejection, no teardown")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(WithBaseURL(srv.URL), WithTokenProvider(TokenFunc(func() string { return "t" })))

	_, err := c.ListUploads(context.Background())
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, MsgTransport, err.Error())

	_, err = c.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)
	assert.True(t, IsTransport(err))
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t, nil)
	f.loginAs("ada@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.client.ListUploads(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRequestIDSentAndSpanRecorded(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, nil, WithTracerProvider(tp))
	f.loginAs("ada@example.com")

	_, err := f.client.ListUploads(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.mock.LastRequestID(), 36)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "plk.api.list_uploads", spans[0].Name)
}

func TestMetricsCountOutcomes(t *testing.T) {
	f := newFixture(t, nil)
	m := NewMetrics()
	okBefore := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("health", "ok"))

	_, err := f.client.Health(context.Background())
	require.NoError(t, err)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("health", "ok")))
}

func TestTokenNeverLogged(t *testing.T) {
	logger, rec := logging.NewRecorder()
	f := newFixture(t, nil, WithLogger(logger))
	f.loginAs("ada@example.com")
	tok := f.token.Load().(string)

	_, err := f.client.ListUploads(context.Background())
	require.NoError(t, err)

	assert.True(t, rec.Has(zapcore.DebugLevel, "api request completed"))
	assert.Empty(t, rec.Leaks(tok))
}
