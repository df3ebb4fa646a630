// Package poller reveals the terminal result of an analysis job by
// re-fetching it on a fixed delay while it is pending.
//
// Each Start returns a Handle owning one goroutine. At most one fetch is in
// flight per handle: the next fetch is only scheduled after the previous one
// resolves. Cancel stops the timer and guarantees that no update is
// delivered after it returns; a fetch already in flight is left to finish
// and its result is discarded.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/logging"
	"go.uber.org/zap"
)

// DefaultInterval is the delay between fetches of a pending analysis.
const DefaultInterval = 3 * time.Second

// Phase is the coarse state of a polling workflow.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// State is one snapshot of a polling workflow.
//
// In PhaseSuccess, Analysis is set and its Status tells whether polling
// continues. In PhaseError, Err is set.
type State struct {
	UploadID string
	Phase    Phase
	Analysis *api.Analysis
	Err      error
	// Fetches counts completed fetches, including the one that produced
	// this state.
	Fetches int
}

// Pending reports whether the analysis is still being processed.
func (s State) Pending() bool {
	return s.Phase == PhaseSuccess && s.Analysis != nil && s.Analysis.Status == api.StatusPending
}

// Terminal reports whether no further update will follow. Only a pending
// analysis is polled again; any other status, including one the client does
// not know, ends the workflow.
func (s State) Terminal() bool {
	switch s.Phase {
	case PhaseError:
		return true
	case PhaseSuccess:
		return !s.Pending()
	default:
		return false
	}
}

// Fetcher retrieves an analysis. *api.Client satisfies it.
type Fetcher interface {
	GetAnalysis(ctx context.Context, uploadID string) (*api.Analysis, error)
}

// Poller starts polling workflows.
type Poller struct {
	fetcher  Fetcher
	interval time.Duration
	logger   *logging.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the delay between fetches.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithLogger sets the poller's logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Poller.
func New(f Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  f,
		interval: DefaultInterval,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the delay between fetches.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start begins polling uploadID. onUpdate receives every state change in
// order, from the polling goroutine. It must not call Cancel on the handle
// it belongs to.
//
// Cancelling ctx stops polling like Cancel does and is also passed to the
// fetches.
func (p *Poller) Start(ctx context.Context, uploadID string, onUpdate func(State)) *Handle {
	if onUpdate == nil {
		onUpdate = func(State) {}
	}
	h := &Handle{
		uploadID: uploadID,
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		state:    State{UploadID: uploadID, Phase: PhaseIdle},
	}
	ctx = logging.WithUploadID(ctx, uploadID)
	go p.run(ctx, h)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle) {
	defer close(h.done)

	if !h.publish(State{UploadID: h.uploadID, Phase: PhaseLoading}) {
		return
	}

	fetches := 0
	for {
		a, err := p.fetcher.GetAnalysis(ctx, h.uploadID)
		fetches++
		if ctx.Err() != nil {
			h.Cancel()
			return
		}

		next := State{UploadID: h.uploadID, Fetches: fetches}
		if err != nil {
			next.Phase = PhaseError
			next.Err = err
		} else {
			next.Phase = PhaseSuccess
			next.Analysis = a
		}
		if !h.publish(next) {
			p.logger.Debug(ctx, "discarded result of cancelled poll", zap.Int("fetch", fetches))
			return
		}
		if !next.Pending() {
			p.logger.Debug(ctx, "polling finished", zap.Int("fetches", fetches), zap.String("phase", string(next.Phase)))
			return
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-timer.C:
		case <-h.stop:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			h.Cancel()
			return
		}
	}
}

// Handle controls one polling workflow.
type Handle struct {
	uploadID string
	onUpdate func(State)

	mu        sync.Mutex
	state     State
	cancelled bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// publish records and delivers s unless the handle was cancelled. The
// callback runs under h.mu so Cancel cannot return while a delivery is in
// progress.
func (h *Handle) publish(s State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return false
	}
	h.state = s
	h.onUpdate(s)
	return true
}

// Cancel stops polling. No update is delivered after Cancel returns.
// Calling Cancel more than once is safe.
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
	h.stopOnce.Do(func() { close(h.stop) })
}

// State returns the most recently delivered state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// UploadID returns the subject of this handle.
func (h *Handle) UploadID() string {
	return h.uploadID
}

// Done is closed when the polling goroutine exits, either because a
// terminal state was reached or because the handle was cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until polling ends or ctx is done and returns the last
// delivered state.
func (h *Handle) Wait(ctx context.Context) (State, error) {
	select {
	case <-h.done:
		return h.State(), nil
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}
}
