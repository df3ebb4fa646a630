// Package upload stages a single CSV file and submits it for analysis.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/logging"
	"github.com/productlogik/plk/internal/session"
	"go.uber.org/zap"
)

const (
	// DefaultRedirectDelay is how long the success message stays up before
	// the user is sent to the uploads listing.
	DefaultRedirectDelay = 2 * time.Second

	// DefaultMaxBytes is the largest file accepted at staging time.
	DefaultMaxBytes int64 = 10 * 1024 * 1024

	// DefaultErrorMessage is shown when a failure carries no server message.
	DefaultErrorMessage = "Upload failed. Please try again."
)

var (
	// ErrNoFile is returned when submitting without a staged file.
	ErrNoFile = errors.New("no file selected")

	// ErrNotCSV is returned when staging a file without a .csv extension.
	ErrNotCSV = errors.New("only CSV files are supported")

	// ErrTooLarge is returned when staging a file over the size limit.
	ErrTooLarge = errors.New("file exceeds the maximum upload size")
)

// Uploader submits CSV content. *api.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*api.UploadResult, error)
}

// SessionChecker reports whether a user is logged in. *session.Store
// satisfies it.
type SessionChecker interface {
	LoggedIn() bool
}

// File is the staged CSV.
type File struct {
	Path string
	Name string
	Size int64
}

// SizeKB formats the file size the way the upload form shows it.
func (f File) SizeKB() string {
	return fmt.Sprintf("%.2f KB", float64(f.Size)/1024)
}

// State is a snapshot of the upload form.
type State struct {
	File       *File
	Submitting bool
	Error      string
	Success    string
	Result     *api.UploadResult
}

// Flow is the upload form: one staged file, a submit action and the
// messages that result from it. It is safe for concurrent use.
type Flow struct {
	uploader      Uploader
	session       SessionChecker
	nav           session.Navigator
	maxBytes      int64
	redirectDelay time.Duration
	logger        *logging.Logger

	mu       sync.Mutex
	state    State
	redirect *redirect
	// gen changes whenever the staged file is replaced or removed, so a
	// submission can tell that its form is gone.
	gen        uint64
	submitting bool
}

// Option configures a Flow.
type Option func(*Flow)

// WithMaxBytes sets the staging size limit.
func WithMaxBytes(n int64) Option {
	return func(f *Flow) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithRedirectDelay sets the pause between success and navigation.
func WithRedirectDelay(d time.Duration) Option {
	return func(f *Flow) {
		if d >= 0 {
			f.redirectDelay = d
		}
	}
}

// WithLogger sets the flow's logger.
func WithLogger(l *logging.Logger) Option {
	return func(f *Flow) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFlow creates an upload form.
func NewFlow(u Uploader, s SessionChecker, nav session.Navigator, opts ...Option) *Flow {
	if nav == nil {
		nav = session.NavigatorFunc(func(session.Route) {})
	}
	f := &Flow{
		uploader:      u,
		session:       s,
		nav:           nav,
		maxBytes:      DefaultMaxBytes,
		redirectDelay: DefaultRedirectDelay,
		logger:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// State returns the current form state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	if s.File != nil {
		file := *s.File
		s.File = &file
	}
	return s
}

// Select stages path, replacing any previously staged file. A rejected
// file leaves the form unchanged.
func (f *Flow) Select(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return fmt.Errorf("%w: %s", ErrNotCSV, filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	if info.Size() > f.maxBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, info.Name(), info.Size(), f.maxBytes)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked(&File{Path: path, Name: info.Name(), Size: info.Size()})
	return nil
}

// Remove clears the staged file and any error or success message.
func (f *Flow) Remove() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetLocked(nil)
}

// resetLocked restages file with a clean form. An upload still in flight
// keeps Submitting set; its outcome will be dropped.
func (f *Flow) resetLocked(file *File) {
	f.cancelRedirectLocked()
	f.gen++
	f.state = State{File: file, Submitting: f.submitting}
}

// Submit uploads the staged file.
//
// Without a session the user is sent to the login route and an error
// matching api.ErrNoSession is returned without contacting the server. On
// success the row count is reported and navigation to the uploads route is
// scheduled after the redirect delay. On failure the server message is kept
// in the state and the file stays staged for a retry. If the file is
// replaced or removed while the request is in flight, its outcome is
// returned but not applied to the form and no navigation is scheduled.
func (f *Flow) Submit(ctx context.Context) (*api.UploadResult, error) {
	f.mu.Lock()
	if f.state.File == nil {
		f.mu.Unlock()
		return nil, ErrNoFile
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, errors.New("upload already in progress")
	}
	if !f.session.LoggedIn() {
		f.mu.Unlock()
		f.nav.Navigate(session.RouteLogin)
		return nil, api.NoSession()
	}
	file := *f.state.File
	gen := f.gen
	f.submitting = true
	f.state.Submitting = true
	f.state.Error = ""
	f.state.Success = ""
	f.mu.Unlock()

	ctx = logging.WithOperation(ctx, "upload")
	result, err := f.send(ctx, file)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	f.state.Submitting = false
	if gen != f.gen {
		f.logger.Debug(ctx, "dropped outcome of replaced upload", zap.String("file", file.Name))
		return result, err
	}
	if err != nil {
		f.state.Error = Message(err)
		f.logger.Info(ctx, "upload failed", zap.String("file", file.Name), zap.Error(err))
		return nil, err
	}

	f.state.Result = result
	f.state.Success = SuccessMessage(result)
	f.logger.Info(ctx, "upload succeeded",
		zap.String("file", file.Name),
		zap.String("upload_id", result.UploadID),
		zap.Int("rows", result.RowCount))
	f.scheduleRedirectLocked()
	return result, nil
}

func (f *Flow) send(ctx context.Context, file File) (*api.UploadResult, error) {
	fh, err := os.Open(file.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer fh.Close()
	return f.uploader.Upload(ctx, file.Name, fh)
}

// WaitRedirect blocks until the scheduled post-upload navigation happens.
// If ctx ends first the navigation is cancelled. It returns immediately when
// nothing is scheduled.
func (f *Flow) WaitRedirect(ctx context.Context) error {
	f.mu.Lock()
	r := f.redirect
	f.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		f.mu.Lock()
		if f.redirect == r {
			f.cancelRedirectLocked()
		}
		f.mu.Unlock()
		return ctx.Err()
	}
}

// CancelRedirect stops a scheduled navigation.
func (f *Flow) CancelRedirect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelRedirectLocked()
}

type redirect struct {
	timer *time.Timer
	once  sync.Once
	done  chan struct{}
}

func (r *redirect) finish() {
	r.once.Do(func() { close(r.done) })
}

func (f *Flow) scheduleRedirectLocked() {
	f.cancelRedirectLocked()
	r := &redirect{done: make(chan struct{})}
	r.timer = time.AfterFunc(f.redirectDelay, func() {
		f.mu.Lock()
		current := f.redirect == r
		if current {
			f.redirect = nil
		}
		f.mu.Unlock()
		if current {
			f.nav.Navigate(session.RouteUploads)
		}
		r.finish()
	})
	f.redirect = r
}

func (f *Flow) cancelRedirectLocked() {
	if f.redirect == nil {
		return
	}
	f.redirect.timer.Stop()
	f.redirect.finish()
	f.redirect = nil
}

// Message returns the text to show for a failed upload: the server's
// message when there is one, otherwise a default.
func Message(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}

// SuccessMessage reports the processed row count.
func SuccessMessage(r *api.UploadResult) string {
	return fmt.Sprintf("Upload successful! %d rows processed.", r.RowCount)
}
