// Package tui renders ProductLogik resources for the terminal.
//
// Static views (analysis panels, upload and share listings, profile and
// usage) are plain functions returning strings. WatchModel is a bubbletea
// program that polls one or more analyses until they settle.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/productlogik/plk/internal/api"
)

// palette maps roles to ANSI 256 colors. Adaptive pairs keep text readable
// on light terminals.
type palette struct {
	brand, accent, text, muted, faint lipgloss.TerminalColor
	ok, warn, bad                     lipgloss.TerminalColor
	border                            lipgloss.TerminalColor
}

var defaultPalette = palette{
	brand:  lipgloss.AdaptiveColor{Light: "30", Dark: "51"},
	accent: lipgloss.AdaptiveColor{Light: "25", Dark: "45"},
	text:   lipgloss.AdaptiveColor{Light: "235", Dark: "231"},
	muted:  lipgloss.AdaptiveColor{Light: "242", Dark: "245"},
	faint:  lipgloss.AdaptiveColor{Light: "240", Dark: "250"},
	ok:     lipgloss.AdaptiveColor{Light: "28", Dark: "46"},
	warn:   lipgloss.AdaptiveColor{Light: "136", Dark: "226"},
	bad:    lipgloss.AdaptiveColor{Light: "160", Dark: "196"},
	border: lipgloss.AdaptiveColor{Light: "250", Dark: "238"},
}

type styles struct {
	header, section, label, value, dim lipgloss.Style
	ok, warn, bad, quote               lipgloss.Style
	box, footer, footerKey, tab, tabOn lipgloss.Style
	cell, cellHead                     lipgloss.Style
}

func newStyles(p palette) styles {
	base := lipgloss.NewStyle()
	bold := base.Bold(true)
	return styles{
		header:    bold.Foreground(lipgloss.Color("0")).Background(p.brand).Padding(0, 1),
		section:   bold.Foreground(p.brand).MarginTop(1),
		label:     base.Foreground(p.accent),
		value:     bold.Foreground(p.text),
		dim:       base.Foreground(p.muted),
		ok:        bold.Foreground(p.ok),
		warn:      bold.Foreground(p.warn),
		bad:       bold.Foreground(p.bad),
		quote:     base.Foreground(p.faint).Italic(true).PaddingLeft(4),
		box:       base.Border(lipgloss.RoundedBorder()).BorderForeground(p.border).Padding(1, 2),
		footer:    base.Foreground(p.muted).MarginTop(1),
		footerKey: bold.Foreground(p.brand),
		tab:       base.Foreground(p.muted).Padding(0, 1),
		tabOn:     base.Foreground(lipgloss.Color("0")).Background(p.accent).Padding(0, 1),
		cell:      base.Padding(0, 1),
		cellHead:  bold.Foreground(p.accent).Padding(0, 1),
	}
}

var st = newStyles(defaultPalette)

// sentimentBadge colors a sentiment label the way the web priority cards do:
// negative and critical alike, positive and neutral each distinct.
func sentimentBadge(s api.Sentiment) string {
	label := "[" + string(s) + "]"
	switch s {
	case api.SentimentNegative, api.SentimentCritical:
		return st.bad.Render(label)
	case api.SentimentPositive:
		return st.ok.Render(label)
	case api.SentimentNeutral:
		return st.warn.Render(label)
	default:
		return st.dim.Render(label)
	}
}

func backLink() string {
	return st.dim.Render("← Back to uploads: ") + st.value.Render("plk uploads")
}
