package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/logging"
	"github.com/productlogik/plk/internal/mockapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t    *testing.T
	srv  *mockapi.Server
	home string
}

// newHarness points plk at a fresh mock API and an empty home directory.
func newHarness(t *testing.T, cfg *mockapi.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = &mockapi.Config{PendingPolls: 1}
	}
	srv := mockapi.NewServer(logging.Nop(), cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PLK_API_BASE_URL", ts.URL)
	t.Setenv("PLK_POLL_INTERVAL", "10ms")
	t.Setenv("PLK_UPLOAD_REDIRECT_DELAY", "10ms")
	t.Setenv("PLK_API_RATE_LIMIT", "1000")

	return &harness{t: t, srv: srv, home: home}
}

func (h *harness) runInput(input string, args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, strings.NewReader(input), &out, &errOut)
	return out.String(), errOut.String(), code
}

func (h *harness) run(args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	return h.runInput("", args...)
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, errOut, code := h.run(args...)
	require.Equal(h.t, 0, code, "plk %s failed: %s", strings.Join(args, " "), errOut)
	return out
}

func (h *harness) login(email, password string) {
	h.t.Helper()
	h.srv.AddUser(email, password, "Ada")
	_, errOut, code := h.runInput(password+"\n", "login", "--email", email)
	require.Equal(h.t, 0, code, errOut)
}

func (h *harness) sessionPath() string {
	return filepath.Join(h.home, ".config", "productlogik", "session.json")
}

func (h *harness) writeCSV(name string) string {
	h.t.Helper()
	path := filepath.Join(h.t.TempDir(), name)
	require.NoError(h.t, os.WriteFile(path, []byte("comment\nGreat reports\nSlow onboarding\n"), 0600))
	return path
}

var watchHint = regexp.MustCompile(`plk watch (\S+)`)

func (h *harness) upload() string {
	h.t.Helper()
	out := h.mustRun("upload", h.writeCSV("feedback.csv"))
	m := watchHint.FindStringSubmatch(out)
	require.Len(h.t, m, 2, "no upload id in %q", out)
	return m[1]
}

func TestCommandsRegistered(t *testing.T) {
	root := (&cli{}).rootCmd()

	want := []string{
		"login", "logout", "register", "verify", "whoami", "profile", "usage",
		"checkout", "portal", "upload", "uploads", "analysis", "watch", "export",
		"share", "shares", "unshare", "health", "mock-server",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
		assert.NotEmpty(t, cmd.Short, name)
	}

	mock, _, err := root.Find([]string{"mock-server"})
	require.NoError(t, err)
	assert.True(t, mock.Hidden)

	for _, flag := range []string{"config", "api-url", "log-level", "log-format", "metrics-out"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestLoginAndWhoami(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.AddUser("ada@example.com", "secret-pass", "Ada")

	out, errOut, code := h.runInput("secret-pass\n", "login", "--email", "ada@example.com")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Logged in as ada@example.com")
	assert.Contains(t, errOut, "plk uploads")

	info, err := os.Stat(h.sessionPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out = h.mustRun("whoami")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Ada")
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.AddUser("ada@example.com", "secret-pass", "Ada")

	_, errOut, code := h.run("login", "--email", "ada@example.com", "--password", "wrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Error: Incorrect username or password")
	assert.NoFileExists(t, h.sessionPath())
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	_, errOut, code := h.run("logout")
	require.Equal(t, 0, code)
	assert.Contains(t, errOut, "Logged out.")

	_, errOut, code = h.run("whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Please log in: plk login")
	assert.Contains(t, errOut, "Error: "+api.MsgNoSession)
}

func TestUploadWithoutSession(t *testing.T) {
	h := newHarness(t, nil)

	_, errOut, code := h.run("upload", h.writeCSV("feedback.csv"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Please log in: plk login")
	assert.Equal(t, 0, h.srv.Calls("POST /api/upload"))
}

func TestUploadRejectsNonCSV(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	_, errOut, code := h.run("upload", h.writeCSV("feedback.txt"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Error:")
	assert.Equal(t, 0, h.srv.Calls("POST /api/upload"))
}

func TestUploadAndAnalysis(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	out, errOut, code := h.run("upload", h.writeCSV("feedback.csv"))
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Upload successful! 2 rows processed.")
	assert.Contains(t, errOut, "View your uploads: plk uploads")
	id := watchHint.FindStringSubmatch(out)[1]

	out = h.mustRun("uploads")
	assert.Contains(t, out, "feedback.csv")

	out = h.mustRun("analysis", id, "--wait")
	assert.Contains(t, out, "Completed")
	assert.Contains(t, out, "Themes")

	out = h.mustRun("analysis", id, "--json")
	var a api.Analysis
	require.NoError(t, json.Unmarshal([]byte(out), &a))
	assert.Equal(t, api.StatusCompleted, a.Status)
	assert.NotEmpty(t, a.Themes)
}

func TestWatchPlain(t *testing.T) {
	h := newHarness(t, &mockapi.Config{PendingPolls: 2})
	h.login("ada@example.com", "secret-pass")
	id := h.upload()

	out := h.mustRun("watch", "--plain", id)
	assert.Contains(t, out, id+": pending")
	assert.Contains(t, out, id+": completed")
	assert.Equal(t, 1, strings.Count(out, id+": pending"))
	assert.Contains(t, out, "Executive Summary")
}

func TestWatchPlainUnknownUpload(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	_, errOut, code := h.run("watch", "--plain", "does-not-exist")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Error:")
}

func TestExport(t *testing.T) {
	h := newHarness(t, &mockapi.Config{PendingPolls: 0})
	h.login("ada@example.com", "secret-pass")
	id := h.upload()
	dir := t.TempDir()

	out := h.mustRun("export", id, "--out", dir)
	assert.Contains(t, out, "Saved 1-page report")
	assert.FileExists(t, filepath.Join(dir, "feedback-analysis.pdf"))
}

func TestExportRejectsOutWithBucket(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")
	dir := t.TempDir()

	before := h.srv.Calls("GET /api/analysis/:id/export")
	_, errOut, code := h.run("export", "some-id", "--out", dir, "--bucket", "reports")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "none of the others can be")
	assert.Equal(t, before, h.srv.Calls("GET /api/analysis/:id/export"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

var inviteLink = regexp.MustCompile(`/signup\?email=bob@example\.com&invite=(\S+)`)

func TestShareDegradedAndRevoke(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")
	id := h.upload()
	h.srv.SetShareEmailFails(true)

	out := h.mustRun("share", id, "bob@example.com")
	assert.Contains(t, out, "Access Granted")
	assert.Contains(t, out, "http://localhost:5173/signup?email=bob@example.com&invite=")
	m := inviteLink.FindStringSubmatch(out)
	require.Len(t, m, 2)
	shareID := m[1]

	out = h.mustRun("shares", id)
	assert.Contains(t, out, "bob@example.com")

	out = h.mustRun("unshare", id, shareID)
	assert.NotEmpty(t, strings.TrimSpace(out))

	out = h.mustRun("shares", id)
	assert.Contains(t, out, "not shared with anyone")
}

func TestShareDelivered(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")
	id := h.upload()

	out := h.mustRun("share", id, "bob@example.com")
	assert.Contains(t, out, "Invitation Sent!")
	assert.NotContains(t, out, "/signup?")

	_, errOut, code := h.run("share", id, "ada@example.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "You cannot share an analysis with yourself")
}

func TestUnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")
	h.srv.RevokeTokens()

	_, errOut, code := h.run("uploads")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Please log in: plk login")

	before := h.srv.Calls("GET /api/auth/me")
	_, errOut, code = h.run("whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not logged in")
	assert.Equal(t, before, h.srv.Calls("GET /api/auth/me"))
}

func TestProfileEditAndUsage(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	_, errOut, code := h.run("profile", "edit")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "nothing to change")

	out := h.mustRun("profile", "edit", "--name", "  Ada Lovelace  ", "--company", "Engines")
	assert.Contains(t, out, "Profile updated.")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Engines")

	h.upload()
	out = h.mustRun("usage")
	assert.Contains(t, out, "Free")
	assert.Contains(t, out, "1 / 5")
	assert.Contains(t, out, "4 remaining")
}

func TestRegisterWithVerification(t *testing.T) {
	h := newHarness(t, &mockapi.Config{PendingPolls: 1, VerificationRequired: true})

	_, errOut, code := h.run("register", "--email", "new@example.com", "--password", "short")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Error: password too short")

	out := h.mustRun("register", "--email", "new@example.com", "--password", "long-enough-pass", "--name", "New")
	assert.Contains(t, out, "plk verify")
	assert.NoFileExists(t, h.sessionPath())

	out = h.mustRun("verify", h.srv.VerificationToken("new@example.com"))
	assert.Contains(t, out, "Email verified successfully!")

	_, errOut, code = h.runInput("long-enough-pass\n", "login", "--email", "new@example.com")
	assert.Equal(t, 0, code, errOut)
}

func TestRegisterLogsIn(t *testing.T) {
	h := newHarness(t, nil)

	out := h.mustRun("register", "--email", "new@example.com", "--password", "long-enough-pass")
	assert.Contains(t, out, "Logged in as new@example.com")
	assert.FileExists(t, h.sessionPath())
}

func TestCheckoutAndPortal(t *testing.T) {
	h := newHarness(t, nil)
	h.login("ada@example.com", "secret-pass")

	out := h.mustRun("checkout", "price_pro_monthly")
	assert.Contains(t, out, "https://checkout.stripe.test/c/pay/price_pro_monthly")

	_, errOut, code := h.run("portal")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "No active subscription found")

	h.srv.SetPlan("ada@example.com", "pro", 100)
	out = h.mustRun("portal")
	assert.Contains(t, out, "https://billing.stripe.test/p/session")
}

func TestHealthWritesMetrics(t *testing.T) {
	h := newHarness(t, nil)
	metrics := filepath.Join(t.TempDir(), "plk.prom")

	out := h.mustRun("--metrics-out", metrics, "health")
	assert.Contains(t, out, "Server Status:")

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "plk_api_requests_total")
}

func TestInvalidLogLevel(t *testing.T) {
	newHarness(t, nil)

	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"--log-level", "loud", "health"}, strings.NewReader(""), &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "invalid log level")
}
