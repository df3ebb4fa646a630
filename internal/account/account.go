// Package account implements the profile editor and usage summary.
//
// Editing is explicit: Edit stages copies of the editable fields, Cancel
// throws them away, and Save sends them and then shows whatever the server
// returned rather than the staged values.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

var (
	// ErrNotLoaded is returned when editing before a profile was fetched.
	ErrNotLoaded = errors.New("profile not loaded")

	// ErrNotEditing is returned when changing or saving fields outside
	// edit mode.
	ErrNotEditing = errors.New("profile is not being edited")
)

// DefaultErrorMessage is shown when a failure carries no server message.
const DefaultErrorMessage = "Failed to update profile"

// ProfileService is the subset of the API used by the editor.
// *api.Client satisfies it.
type ProfileService interface {
	Me(ctx context.Context) (*api.Profile, error)
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*api.Profile, error)
}

// Editor holds the displayed profile and any staged edits.
type Editor struct {
	svc    ProfileService
	logger *logging.Logger

	mu      sync.Mutex
	profile *api.Profile
	editing bool
	draft   api.ProfileUpdate
	saving  bool
	err     string
}

// NewEditor creates a profile editor.
func NewEditor(svc ProfileService, logger *logging.Logger) *Editor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Editor{svc: svc, logger: logger}
}

// Load fetches the profile and makes it the displayed one.
func (e *Editor) Load(ctx context.Context) (*api.Profile, error) {
	p, err := e.svc.Me(ctx)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.profile = p
	return clone(p), nil
}

// Profile returns the displayed profile, or nil before Load.
func (e *Editor) Profile() *api.Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.profile)
}

// Edit enters edit mode with the displayed values staged.
func (e *Editor) Edit() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.profile == nil {
		return ErrNotLoaded
	}
	e.editing = true
	e.err = ""
	e.draft = api.ProfileUpdate{
		FullName:    e.profile.FullName,
		CompanyName: e.profile.CompanyName,
	}
	return nil
}

// Editing reports whether edits are staged.
func (e *Editor) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// SetName stages a new full name.
func (e *Editor) SetName(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	e.draft.FullName = name
	return nil
}

// SetCompany stages a new company name.
func (e *Editor) SetCompany(company string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.editing {
		return ErrNotEditing
	}
	e.draft.CompanyName = company
	return nil
}

// Draft returns the staged values and whether edit mode is active.
func (e *Editor) Draft() (api.ProfileUpdate, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draft, e.editing
}

// Err returns the message of the last failed save.
func (e *Editor) Err() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Cancel discards staged edits. The displayed profile is the last one
// fetched or saved.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editing = false
	e.err = ""
	e.draft = api.ProfileUpdate{}
}

// Save submits the staged values. On success the server's response becomes
// the displayed profile and edit mode ends; on failure edits stay staged.
func (e *Editor) Save(ctx context.Context) (*api.Profile, error) {
	e.mu.Lock()
	if !e.editing {
		e.mu.Unlock()
		return nil, ErrNotEditing
	}
	if e.saving {
		e.mu.Unlock()
		return nil, errors.New("save already in progress")
	}
	e.saving = true
	e.err = ""
	draft := e.draft
	e.mu.Unlock()

	ctx = logging.WithOperation(ctx, "update_profile")
	p, err := e.svc.UpdateProfile(ctx, draft)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.saving = false
	if err != nil {
		e.err = errorMessage(err)
		e.logger.Info(ctx, "profile update failed", zap.Error(err))
		return nil, err
	}
	e.profile = p
	e.editing = false
	e.draft = api.ProfileUpdate{}
	e.logger.Debug(ctx, "profile updated")
	return clone(p), nil
}

// Usage summarizes the analysis allowance of the current plan.
type Usage struct {
	Plan      string
	Used      int
	Limit     int
	Remaining int
}

// UsageOf extracts the usage summary from a profile. ok is false when the
// server sent no quota.
func UsageOf(p *api.Profile) (u Usage, ok bool) {
	if p == nil || p.UsageQuota == nil {
		return Usage{}, false
	}
	q := p.UsageQuota
	return Usage{
		Plan:      PlanName(q.PlanTier),
		Used:      q.AnalysesUsed,
		Limit:     q.AnalysesLimit,
		Remaining: q.Remaining(),
	}, true
}

// Percent returns the share of the allowance used, capped at 100.
func (u Usage) Percent() int {
	if u.Limit <= 0 {
		return 100
	}
	pct := u.Used * 100 / u.Limit
	if pct > 100 {
		return 100
	}
	return pct
}

// String renders the summary as one line.
func (u Usage) String() string {
	return fmt.Sprintf("%s plan: %d of %d analyses used (%d remaining)", u.Plan, u.Used, u.Limit, u.Remaining)
}

// PlanName capitalizes a plan tier for display.
func PlanName(tier string) string {
	if tier == "" {
		return "Free"
	}
	return strings.ToUpper(tier[:1]) + tier[1:]
}

func clone(p *api.Profile) *api.Profile {
	if p == nil {
		return nil
	}
	c := *p
	if p.UsageQuota != nil {
		q := *p.UsageQuota
		c.UsageQuota = &q
	}
	return &c
}

func errorMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return DefaultErrorMessage
}
