// Package share invites collaborators to view an analysis.
//
// An invitation can partly succeed: the server grants access but fails to
// deliver the notification email. The Workflow then exposes a manual
// invitation link the owner can pass on themselves.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

const (
	// DefaultCopyReset is how long the copied indicator stays set.
	DefaultCopyReset = 2 * time.Second

	// DefaultErrorMessage is shown when a failure carries no server message.
	DefaultErrorMessage = "Failed to share upload"
)

var (
	// ErrEmptyEmail is returned when submitting without a recipient.
	ErrEmptyEmail = errors.New("email address is required")

	// ErrNoLink is returned by Copy when there is no manual link to copy.
	ErrNoLink = errors.New("no invitation link available")
)

// Sharer is the subset of the API used by the workflow. *api.Client
// satisfies it.
type Sharer interface {
	ShareUpload(ctx context.Context, uploadID, email string) (*api.ShareResult, error)
	ListShares(ctx context.Context, uploadID string) ([]api.Share, error)
	RevokeShare(ctx context.Context, uploadID, shareID string) (string, error)
}

// State is a snapshot of the share dialog.
type State struct {
	// Email is the recipient being typed. It is cleared after a delivered
	// invitation and kept when a manual link is needed.
	Email   string
	Loading bool
	Error   string

	// Success is set once access was granted. EmailSent is meaningful only
	// when Success is set.
	Success   bool
	EmailSent bool
	Recipient string
	ShareID   string

	Copied bool
}

// Degraded reports whether access was granted without a delivered email.
func (s State) Degraded() bool {
	return s.Success && !s.EmailSent
}

// Workflow is the share dialog for one upload. It is safe for concurrent
// use.
type Workflow struct {
	sharer    Sharer
	uploadID  string
	filename  string
	origin    string
	copyReset time.Duration
	writeClip func(string) error
	logger    *logging.Logger

	mu        sync.Mutex
	state     State
	copyTimer *time.Timer
	copyGen   uint64
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithSiteOrigin sets the web origin used in manual invitation links.
func WithSiteOrigin(origin string) Option {
	return func(w *Workflow) {
		w.origin = strings.TrimRight(origin, "/")
	}
}

// WithCopyReset sets how long the copied indicator stays set.
func WithCopyReset(d time.Duration) Option {
	return func(w *Workflow) {
		if d > 0 {
			w.copyReset = d
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(w *Workflow) {
		if write != nil {
			w.writeClip = write
		}
	}
}

// WithLogger sets the workflow's logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a share dialog for uploadID.
func New(s Sharer, uploadID, filename string, opts ...Option) *Workflow {
	w := &Workflow{
		sharer:    s,
		uploadID:  uploadID,
		filename:  filename,
		origin:    "http://localhost:5173",
		copyReset: DefaultCopyReset,
		writeClip: clipboard.WriteAll,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Description is the dialog subtitle.
func (w *Workflow) Description() string {
	return fmt.Sprintf("Invite others to view the analysis for %q", w.filename)
}

// State returns the current dialog state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// SetEmail sets the recipient field.
func (w *Workflow) SetEmail(email string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Email = email
}

// Submit invites the current recipient.
//
// A response without email_sent counts as delivered. When delivery failed
// the recipient is kept so ManualLink can be built from it.
func (w *Workflow) Submit(ctx context.Context) (*api.ShareResult, error) {
	w.mu.Lock()
	email := strings.TrimSpace(w.state.Email)
	if email == "" {
		w.mu.Unlock()
		return nil, ErrEmptyEmail
	}
	if w.state.Loading {
		w.mu.Unlock()
		return nil, errors.New("share already in progress")
	}
	w.state.Loading = true
	w.state.Error = ""
	w.state.Success = false
	w.state.EmailSent = false
	w.state.ShareID = ""
	w.mu.Unlock()

	ctx = logging.WithUploadID(logging.WithOperation(ctx, "share"), w.uploadID)
	res, err := w.sharer.ShareUpload(ctx, w.uploadID, email)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.Loading = false
	if err != nil {
		w.state.Error = errorMessage(err)
		w.logger.Info(ctx, "share failed", zap.Error(err))
		return nil, err
	}

	w.state.Success = true
	w.state.EmailSent = res.EmailSent
	w.state.ShareID = res.ShareID
	w.state.Recipient = email
	if res.EmailSent {
		w.state.Email = ""
	} else {
		w.state.Email = email
		w.logger.Warn(ctx, "access granted but invitation email not delivered",
			zap.String("share_id", res.ShareID))
	}
	return res, nil
}

// ManualLink returns the invitation link shown when the email could not be
// delivered, or "" when none applies. The recipient appears as typed.
func (w *Workflow) ManualLink() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Degraded() || w.state.ShareID == "" {
		return ""
	}
	return ManualLink(w.origin, w.state.Recipient, w.state.ShareID)
}

// Copy writes the invitation link to the clipboard and sets the copied
// indicator until the reset delay passes. The copied form escapes the
// recipient for use as a URL.
func (w *Workflow) Copy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.state.Degraded() || w.state.ShareID == "" {
		return ErrNoLink
	}
	link := InviteURL(w.origin, w.state.Recipient, w.state.ShareID)
	if err := w.writeClip(link); err != nil {
		return fmt.Errorf("failed to copy invitation link: %w", err)
	}

	w.state.Copied = true
	w.copyGen++
	gen := w.copyGen
	if w.copyTimer != nil {
		w.copyTimer.Stop()
	}
	w.copyTimer = time.AfterFunc(w.copyReset, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.copyGen == gen {
			w.state.Copied = false
		}
	})
	return nil
}

// Reset clears all transient state, as closing the dialog does.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.copyTimer != nil {
		w.copyTimer.Stop()
		w.copyTimer = nil
	}
	w.copyGen++
	w.state = State{}
}

// List returns everyone the upload is shared with.
func (w *Workflow) List(ctx context.Context) ([]api.Share, error) {
	return w.sharer.ListShares(logging.WithUploadID(ctx, w.uploadID), w.uploadID)
}

// Revoke removes a recipient's access and returns the server message.
func (w *Workflow) Revoke(ctx context.Context, shareID string) (string, error) {
	ctx = logging.WithUploadID(ctx, w.uploadID)
	msg, err := w.sharer.RevokeShare(ctx, w.uploadID, shareID)
	if err != nil {
		return "", err
	}
	w.logger.Info(ctx, "share revoked", zap.String("share_id", shareID))
	return msg, nil
}

// ManualLink formats the displayed invitation link.
func ManualLink(origin, email, shareID string) string {
	return fmt.Sprintf("%s/signup?email=%s&invite=%s", strings.TrimRight(origin, "/"), email, shareID)
}

// InviteURL formats the invitation link with the query values escaped.
func InviteURL(origin, email, shareID string) string {
	return fmt.Sprintf("%s/signup?email=%s&invite=%s",
		strings.TrimRight(origin, "/"), url.QueryEscape(email), url.QueryEscape(shareID))
}

func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}
