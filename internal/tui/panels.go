package tui

import (
	"fmt"
	"strings"

	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/poller"
)

// Panel identifies which view an analysis state renders as.
type Panel int

const (
	PanelLoading Panel = iota
	PanelError
	PanelPending
	PanelFailed
	PanelResults
)

const (
	// MsgNotFound heads the panel for a missing analysis or a failed fetch.
	MsgNotFound = "Analysis not found"
	// MsgPending explains the in-progress panel.
	MsgPending = "Your feedback is being analyzed. This view updates automatically."
	// DefaultFailedMessage is used when a failed analysis carries no message.
	DefaultFailedMessage = "We couldn't analyze this file. Please check the format and try again."

	maxEvidence = 3
)

// Classify picks the panel for s.
func Classify(s poller.State) Panel {
	switch s.Phase {
	case poller.PhaseIdle, poller.PhaseLoading:
		return PanelLoading
	case poller.PhaseError:
		return PanelError
	}
	if s.Analysis == nil {
		return PanelError
	}
	switch s.Analysis.Status {
	case api.StatusPending:
		return PanelPending
	case api.StatusFailed:
		return PanelFailed
	case api.StatusCompleted:
		return PanelResults
	default:
		return PanelError
	}
}

// AnalysisPanel renders s. spin is the current spinner frame shown while
// loading and pending.
func AnalysisPanel(s poller.State, spin string) string {
	var b strings.Builder
	switch Classify(s) {
	case PanelLoading:
		fmt.Fprintf(&b, "%s %s\n", spin, st.dim.Render("Loading analysis..."))

	case PanelError:
		b.WriteString(st.bad.Render("✗ "+MsgNotFound) + "\n")
		if s.Err != nil {
			b.WriteString(st.dim.Render(s.Err.Error()) + "\n")
		}
		b.WriteString("\n" + backLink() + "\n")

	case PanelPending:
		b.WriteString(st.warn.Render("⚠ Analysis in progress") + "\n")
		fmt.Fprintf(&b, "%s %s\n", spin, st.dim.Render(pendingMessage(s.Analysis)))
		if s.Analysis.Filename != "" {
			b.WriteString(st.label.Render("File: ") + st.value.Render(s.Analysis.Filename) + "\n")
		}
		b.WriteString("\n" + backLink() + "\n")

	case PanelFailed:
		msg := s.Analysis.Message
		if msg == "" {
			msg = DefaultFailedMessage
		}
		b.WriteString(st.bad.Render("✗ Analysis failed") + "\n")
		b.WriteString(msg + "\n")
		b.WriteString("\n" + backLink() + "\n")

	case PanelResults:
		b.WriteString(Results(s.Analysis))
	}
	return b.String()
}

func pendingMessage(a *api.Analysis) string {
	if a.Message != "" {
		return a.Message
	}
	return MsgPending
}

// Results renders a completed analysis.
func Results(a *api.Analysis) string {
	var b strings.Builder

	title := a.Filename
	if title == "" {
		title = a.UploadID
	}
	b.WriteString(st.header.Render(" "+title+" ") + "\n")
	b.WriteString(st.ok.Render("✓ Completed") + "  " +
		st.dim.Render(fmt.Sprintf("%d rows", a.RowCount)) + "  " +
		st.dim.Render("processed in "+FormatProcessingTime(a.ProcessingTimeMS)))
	if a.CreatedAt != "" {
		b.WriteString("  " + st.dim.Render(FormatTimestamp(a.CreatedAt)))
	}
	b.WriteString("\n")

	b.WriteString(st.section.Render("┃ Executive Summary") + "\n")
	if a.ExecutiveSummary != "" {
		b.WriteString("  " + a.ExecutiveSummary + "\n")
	}
	b.WriteString(st.label.Render("  Confidence: ") + st.value.Render(FormatConfidence(a.ConfidenceScore)) + "\n")

	b.WriteString(st.section.Render(fmt.Sprintf("┃ Themes (%d)", len(a.Themes))) + "\n")
	if len(a.Themes) == 0 {
		b.WriteString(st.dim.Render("  No themes were identified.") + "\n")
	}
	for i, t := range a.Themes {
		fmt.Fprintf(&b, "  %s %s %s\n",
			st.value.Render(fmt.Sprintf("%d. %s", i+1, t.Name)),
			sentimentBadge(t.Sentiment),
			st.dim.Render(FormatMentions(t.Count)+", "+FormatConfidence(t.Confidence)+" confidence"))
		if t.Summary != "" {
			b.WriteString("     " + t.Summary + "\n")
		}
		for j, q := range t.Evidence {
			if j == maxEvidence {
				b.WriteString(st.quote.Render(fmt.Sprintf("(+%d more)", len(t.Evidence)-maxEvidence)) + "\n")
				break
			}
			b.WriteString(st.quote.Render("“"+q+"”") + "\n")
		}
	}
	return b.String()
}
