package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/productlogik/plk/internal/poller"
)

// mailbox hands polling states to the bubbletea loop. It keeps only the
// latest state so the polling goroutine never blocks on the UI.
type mailbox struct {
	mu     sync.Mutex
	latest poller.State
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (b *mailbox) put(s poller.State) {
	b.mu.Lock()
	b.latest = s
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *mailbox) take() poller.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Message types
type switchMsg struct{ index int }

type stateMsg struct {
	gen   int
	state poller.State
}

type stoppedMsg struct{ gen int }

// WatchModel is the bubbletea model for `plk watch`. It polls one analysis
// at a time; tab switches between the watched uploads, cancelling the
// previous subject.
type WatchModel struct {
	ctx      context.Context
	ids      []string
	index    int
	interval time.Duration

	subject *poller.Subject
	box     *mailbox
	handle  *poller.Handle
	gen     int

	state      poller.State
	lastUpdate time.Time
	spinner    spinner.Model
	quitting   bool
}

// NewWatchModel creates a model watching uploadIDs with p.
func NewWatchModel(ctx context.Context, p *poller.Poller, uploadIDs ...string) WatchModel {
	box := newMailbox()
	return WatchModel{
		ctx:      ctx,
		ids:      uploadIDs,
		interval: p.Interval(),
		subject:  poller.NewSubject(p, box.put),
		box:      box,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(st.label),
		),
	}
}

// State returns the state currently displayed.
func (m WatchModel) State() poller.State {
	return m.state
}

// Init starts polling the first upload.
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return switchMsg{index: 0} },
	)
}

// waitForState blocks until the poller publishes or the handle ends.
func waitForState(box *mailbox, h *poller.Handle, gen int) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-box.notify:
			return stateMsg{gen: gen, state: box.take()}
		case <-h.Done():
			select {
			case <-box.notify:
				return stateMsg{gen: gen, state: box.take()}
			default:
			}
			return stoppedMsg{gen: gen}
		}
	}
}

func (m WatchModel) current() string {
	if len(m.ids) == 0 {
		return ""
	}
	return m.ids[m.index]
}

// Update handles messages
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.subject.Stop()
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m.switchTo(m.index)
		case "tab", "right", "n":
			if len(m.ids) > 1 {
				return m.switchTo((m.index + 1) % len(m.ids))
			}
		case "shift+tab", "left", "p":
			if len(m.ids) > 1 {
				return m.switchTo((m.index + len(m.ids) - 1) % len(m.ids))
			}
		}

	case switchMsg:
		return m.switchTo(msg.index)

	case stateMsg:
		// States of an upload no longer selected are dropped. A waiter from
		// an earlier generation is not renewed.
		if msg.state.UploadID == m.current() {
			m.state = msg.state
			m.lastUpdate = time.Now()
		}
		if msg.gen != m.gen || msg.state.Terminal() && msg.state.UploadID == m.current() {
			return m, nil
		}
		return m, waitForState(m.box, m.handle, m.gen)

	case stoppedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m WatchModel) switchTo(index int) (tea.Model, tea.Cmd) {
	if len(m.ids) == 0 {
		return m, nil
	}
	m.index = index
	m.gen++
	m.state = poller.State{UploadID: m.current(), Phase: poller.PhaseLoading}
	m.handle = m.subject.Switch(m.ctx, m.current())
	return m, waitForState(m.box, m.handle, m.gen)
}

// View renders the watch screen
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	var content strings.Builder
	content.WriteString(st.header.Render(" ProductLogik Analysis ") + "\n")

	if len(m.ids) > 1 {
		tabs := make([]string, len(m.ids))
		for i, id := range m.ids {
			if i == m.index {
				tabs[i] = st.tabOn.Render(id)
			} else {
				tabs[i] = st.tab.Render(id)
			}
		}
		content.WriteString(strings.Join(tabs, " ") + "\n")
	}
	content.WriteString("\n")

	if len(m.ids) == 0 {
		content.WriteString(st.dim.Render("Nothing to watch.") + "\n")
	} else {
		content.WriteString(AnalysisPanel(m.state, m.spinner.View()))
	}

	lastUpdate := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	footer := st.footerKey.Render("[q]") + st.footer.Render(" quit  ") +
		st.footerKey.Render("[r]") + st.footer.Render(" refresh  ")
	if len(m.ids) > 1 {
		footer += st.footerKey.Render("[tab]") + st.footer.Render(" next  ")
	}
	footer += st.footer.Render(fmt.Sprintf("Auto: %v  Updated: %s", m.interval, lastUpdate))
	content.WriteString("\n" + footer)

	return st.box.Render(content.String())
}
