package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/productlogik/plk/internal/account"
	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/poller"
	"github.com/productlogik/plk/internal/share"
	"github.com/productlogik/plk/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed() *api.Analysis {
	return &api.Analysis{
		UploadID:         "u1",
		Filename:         "feedback.csv",
		RowCount:         120,
		Status:           api.StatusCompleted,
		ExecutiveSummary: "Users love reporting but struggle with onboarding.",
		ConfidenceScore:  0.82,
		ProcessingTimeMS: 1840,
		Themes: []api.Theme{
			{Name: "Onboarding friction", Sentiment: api.SentimentNegative, Confidence: 87, Count: 42,
				Summary: "Setup is slow.", Evidence: []string{"a", "b", "c", "d", "e"}},
			{Name: "Reporting praise", Sentiment: api.SentimentPositive, Confidence: 0.78, Count: 1},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		state poller.State
		want  Panel
	}{
		{"idle", poller.State{Phase: poller.PhaseIdle}, PanelLoading},
		{"loading", poller.State{Phase: poller.PhaseLoading}, PanelLoading},
		{"error", poller.State{Phase: poller.PhaseError, Err: errors.New("boom")}, PanelError},
		{"missing result", poller.State{Phase: poller.PhaseSuccess}, PanelError},
		{"pending", poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: api.StatusPending}}, PanelPending},
		{"failed", poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: api.StatusFailed}}, PanelFailed},
		{"completed", poller.State{Phase: poller.PhaseSuccess, Analysis: completed()}, PanelResults},
		{"unknown status", poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: "exploded"}}, PanelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.state))
		})
	}
}

func TestAnalysisPanel(t *testing.T) {
	t.Run("loading shows spinner", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseLoading}, "SPIN")
		assert.Contains(t, out, "SPIN")
		assert.Contains(t, out, "Loading analysis")
	})

	t.Run("error links back", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseError, Err: errors.New("Upload not found")}, "")
		assert.Contains(t, out, MsgNotFound)
		assert.Contains(t, out, "Upload not found")
		assert.Contains(t, out, "plk uploads")
	})

	t.Run("pending links back", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: api.StatusPending}}, "SPIN")
		assert.Contains(t, out, "Analysis in progress")
		assert.Contains(t, out, MsgPending)
		assert.Contains(t, out, "plk uploads")
	})

	t.Run("failed uses server message", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: api.StatusFailed, Message: "No rows found"}}, "")
		assert.Contains(t, out, "Analysis failed")
		assert.Contains(t, out, "No rows found")
		assert.NotContains(t, out, DefaultFailedMessage)
	})

	t.Run("failed default message", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseSuccess, Analysis: &api.Analysis{Status: api.StatusFailed}}, "")
		assert.Contains(t, out, DefaultFailedMessage)
	})

	t.Run("completed shows results", func(t *testing.T) {
		out := AnalysisPanel(poller.State{Phase: poller.PhaseSuccess, Analysis: completed()}, "SPIN")
		assert.NotContains(t, out, "SPIN")
		assert.Contains(t, out, "feedback.csv")
		assert.Contains(t, out, "Users love reporting")
		assert.Contains(t, out, "82%")
		assert.Contains(t, out, "1.8s")
		assert.Contains(t, out, "1. Onboarding friction")
		assert.Contains(t, out, "42 mentions, 87% confidence")
		assert.Contains(t, out, "1 mention, 78% confidence")
		assert.Contains(t, out, "(+2 more)")
		assert.NotContains(t, out, "“d”")
	})
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "82%", FormatConfidence(0.82))
	assert.Equal(t, "87%", FormatConfidence(87))
	assert.Equal(t, "950ms", FormatProcessingTime(950))
	assert.Equal(t, "2.5s", FormatProcessingTime(2500))
	assert.Equal(t, "-", FormatTimestamp(""))
	assert.Equal(t, "yesterday", FormatTimestamp("yesterday"))
	assert.Equal(t, "3 mentions", FormatMentions(3))
}

func TestUploadsView(t *testing.T) {
	assert.Contains(t, Uploads(nil, false), "No uploads yet")
	assert.Contains(t, Uploads(nil, true), "Nothing has been shared")

	out := Uploads([]api.Upload{{UploadID: "u1", Filename: "a.csv", RowCount: 3, Status: "completed", HasAnalysis: true, ThemeCount: 4}}, false)
	assert.Contains(t, out, "a.csv")
	assert.Contains(t, out, "Themes")

	out = Uploads([]api.Upload{{UploadID: "u2", Filename: "b.csv", OwnerEmail: "o@x.com", OwnerName: "Owner"}}, true)
	assert.Contains(t, out, "Owner <o@x.com>")
}

func TestShareOutcome(t *testing.T) {
	out := ShareOutcome(share.State{Success: true, EmailSent: true, Recipient: "a@b.com"}, "")
	assert.Contains(t, out, "Invitation Sent!")
	assert.Contains(t, out, "a@b.com")

	link := share.ManualLink("http://localhost:5173", "a@b.com", "abc")
	out = ShareOutcome(share.State{Success: true, Recipient: "a@b.com", ShareID: "abc", Copied: true}, link)
	assert.Contains(t, out, "Access Granted")
	assert.Contains(t, out, "http://localhost:5173/signup?email=a@b.com&invite=abc")
	assert.Contains(t, out, "Copied")

	out = ShareOutcome(share.State{Error: "nope"}, "")
	assert.Contains(t, out, "nope")
}

func TestUploadOutcome(t *testing.T) {
	out := UploadOutcome(upload.State{
		File:    &upload.File{Name: "a.csv", Size: 2048},
		Success: "Upload successful! 3 rows processed.",
		Result:  &api.UploadResult{UploadID: "u1"},
	})
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "3 rows processed")
	assert.Contains(t, out, "plk watch u1")
}

func TestProfileAndUsage(t *testing.T) {
	p := &api.Profile{Email: "ada@example.com", FullName: "Ada", UsageQuota: &api.UsageQuota{PlanTier: "free", AnalysesLimit: 5, AnalysesUsed: 5}}
	out := Profile(p)
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Free")

	u, ok := account.UsageOf(p)
	require.True(t, ok)
	out = Usage(u)
	assert.Contains(t, out, "5 / 5")
	assert.Contains(t, out, "0 remaining")
	assert.Contains(t, out, "plk checkout")
}

// scripted returns statuses per upload id in order, repeating the last.
type scripted struct {
	mu      sync.Mutex
	scripts map[string][]api.Status
	calls   map[string]int
}

func (s *scripted) GetAnalysis(ctx context.Context, id string) (*api.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script := s.scripts[id]
	if len(script) == 0 {
		return nil, errors.New("Upload not found")
	}
	i := s.calls[id]
	s.calls[id]++
	if i >= len(script) {
		i = len(script) - 1
	}
	return &api.Analysis{UploadID: id, Filename: id + ".csv", Status: script[i]}, nil
}

// run feeds cmd results back into the model until no command remains or
// the state is terminal.
func run(t *testing.T, m WatchModel, cmd tea.Cmd) WatchModel {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for cmd != nil {
		out := make(chan tea.Msg, 1)
		go func(c tea.Cmd) { out <- c() }(cmd)
		select {
		case msg := <-out:
			var next tea.Model
			next, cmd = m.Update(msg)
			m = next.(WatchModel)
		case <-deadline:
			t.Fatal("watch model did not settle")
		}
	}
	return m
}

func TestWatchModelPollsToCompletion(t *testing.T) {
	f := &scripted{scripts: map[string][]api.Status{"u1": {api.StatusPending, api.StatusCompleted}}, calls: map[string]int{}}
	p := poller.New(f, poller.WithInterval(10*time.Millisecond))
	m := NewWatchModel(context.Background(), p, "u1")
	assert.NotNil(t, m.Init())

	next, cmd := m.Update(switchMsg{index: 0})
	m = run(t, next.(WatchModel), cmd)

	assert.Equal(t, api.StatusCompleted, m.State().Analysis.Status)
	assert.Contains(t, m.View(), "u1.csv")
	assert.Contains(t, m.View(), "Completed")
}

func TestWatchModelFetchError(t *testing.T) {
	f := &scripted{scripts: map[string][]api.Status{}, calls: map[string]int{}}
	m := NewWatchModel(context.Background(), poller.New(f), "missing")
	next, cmd := m.Update(switchMsg{index: 0})
	m = run(t, next.(WatchModel), cmd)

	assert.Equal(t, poller.PhaseError, m.State().Phase)
	assert.Contains(t, m.View(), MsgNotFound)
}

func TestWatchModelSwitchSubject(t *testing.T) {
	f := &scripted{scripts: map[string][]api.Status{
		"slow": {api.StatusPending},
		"fast": {api.StatusCompleted},
	}, calls: map[string]int{}}
	p := poller.New(f, poller.WithInterval(20*time.Millisecond))
	m := NewWatchModel(context.Background(), p, "slow", "fast")

	next, _ := m.Update(switchMsg{index: 0})
	m = next.(WatchModel)
	slow := m.handle

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = run(t, next.(WatchModel), cmd)

	select {
	case <-slow.Done():
	case <-time.After(time.Second):
		t.Fatal("previous subject still polling")
	}
	assert.Equal(t, "fast", m.State().UploadID)
	assert.Equal(t, api.StatusCompleted, m.State().Analysis.Status)
	view := m.View()
	assert.Contains(t, view, "slow")
	assert.Contains(t, view, "[tab]")
}

func TestWatchModelQuit(t *testing.T) {
	f := &scripted{scripts: map[string][]api.Status{"u1": {api.StatusPending}}, calls: map[string]int{}}
	m := NewWatchModel(context.Background(), poller.New(f, poller.WithInterval(10*time.Millisecond)), "u1")
	next, _ := m.Update(switchMsg{index: 0})
	m = next.(WatchModel)
	h := m.handle

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(WatchModel)
	assert.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("polling not stopped on quit")
	}
}

func TestWatchModelNoIDs(t *testing.T) {
	m := NewWatchModel(context.Background(), poller.New(&scripted{}))
	next, cmd := m.Update(switchMsg{index: 0})
	assert.Nil(t, cmd)
	assert.True(t, strings.Contains(next.(WatchModel).View(), "Nothing to watch"))
}
