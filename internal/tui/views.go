package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/productlogik/plk/internal/account"
	"github.com/productlogik/plk/internal/api"
	"github.com/productlogik/plk/internal/share"
	"github.com/productlogik/plk/internal/upload"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(defaultPalette.border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return st.cellHead
			}
			return st.cell
		})
}

// Uploads renders the caller's uploads, or those shared with them.
func Uploads(uploads []api.Upload, shared bool) string {
	if len(uploads) == 0 {
		if shared {
			return st.dim.Render("Nothing has been shared with you yet.") + "\n"
		}
		return st.dim.Render("No uploads yet. Start one with: plk upload <file.csv>") + "\n"
	}

	var t *table.Table
	if shared {
		t = newTable("ID", "File", "Rows", "Status", "Owner", "Shared")
	} else {
		t = newTable("ID", "File", "Rows", "Status", "Themes", "Created")
	}
	for _, u := range uploads {
		if shared {
			owner := u.OwnerEmail
			if u.OwnerName != "" {
				owner = u.OwnerName + " <" + u.OwnerEmail + ">"
			}
			t.Row(u.UploadID, u.Filename, strconv.Itoa(u.RowCount), u.Status, owner, FormatTimestamp(u.SharedAt))
			continue
		}
		themes := "-"
		if u.HasAnalysis {
			themes = strconv.Itoa(u.ThemeCount)
		}
		t.Row(u.UploadID, u.Filename, strconv.Itoa(u.RowCount), u.Status, themes, FormatTimestamp(u.CreatedAt))
	}
	return t.Render() + "\n"
}

// Shares renders the recipients of an upload.
func Shares(shares []api.Share) string {
	if len(shares) == 0 {
		return st.dim.Render("This analysis is not shared with anyone.") + "\n"
	}
	t := newTable("Share ID", "Email", "Name", "Status", "Permission", "Expires")
	for _, s := range shares {
		t.Row(s.ShareID, s.Email, s.FullName, s.Status, s.Permission, FormatTimestamp(s.ExpiresAt))
	}
	return t.Render() + "\n"
}

// ShareOutcome renders the share dialog after a submit. link is the manual
// invitation link, used only when the email was not delivered.
func ShareOutcome(s share.State, link string) string {
	var b strings.Builder
	switch {
	case s.Error != "":
		b.WriteString(st.bad.Render("✗ "+s.Error) + "\n")
	case s.Degraded():
		b.WriteString(st.warn.Render("⚠ Access Granted") + "\n")
		fmt.Fprintf(&b, "%s has been given access, but we couldn't send the invitation email. "+
			"Please verify the email address is correct or share the link manually.\n", s.Recipient)
		if link != "" {
			b.WriteString("\n" + st.label.Render("Manual Invitation Link") + "\n")
			b.WriteString("  " + st.value.Render(link) + "\n")
		}
		if s.Copied {
			b.WriteString(st.ok.Render("✓ Copied to clipboard") + "\n")
		}
	case s.Success:
		b.WriteString(st.ok.Render("✓ Invitation Sent!") + "\n")
		fmt.Fprintf(&b, "An email has been sent to %s to invite them to view this analysis.\n", s.Recipient)
	}
	return b.String()
}

// UploadOutcome renders the upload form messages.
func UploadOutcome(s upload.State) string {
	var b strings.Builder
	if s.File != nil {
		b.WriteString(st.label.Render("File: ") + st.value.Render(s.File.Name) + " " + st.dim.Render(s.File.SizeKB()) + "\n")
	}
	switch {
	case s.Error != "":
		b.WriteString(st.bad.Render("✗ "+s.Error) + "\n")
	case s.Success != "":
		b.WriteString(st.ok.Render("✓ "+s.Success) + "\n")
		if s.Result != nil && s.Result.UploadID != "" {
			b.WriteString(st.dim.Render("Follow the analysis: ") + st.value.Render("plk watch "+s.Result.UploadID) + "\n")
		}
	}
	return b.String()
}

// Profile renders the account page.
func Profile(p *api.Profile) string {
	var b strings.Builder
	b.WriteString(st.header.Render(" Account ") + "\n")
	row := func(label, value string) {
		if value == "" {
			value = st.dim.Render("-")
		} else {
			value = st.value.Render(value)
		}
		b.WriteString(st.label.Render(fmt.Sprintf("  %-9s", label)) + value + "\n")
	}
	row("Email:", p.Email)
	row("Name:", p.FullName)
	row("Company:", p.CompanyName)
	row("Role:", p.Role)
	row("Joined:", FormatTimestamp(p.CreatedAt))
	if u, ok := account.UsageOf(p); ok {
		row("Plan:", u.Plan)
	}
	return b.String()
}

// Usage renders the allowance with a progress bar.
func Usage(u account.Usage) string {
	bar := progress.New(
		progress.WithGradient("#00ff00", "#ff0000"),
		progress.WithWidth(40),
	)
	badge := st.ok.Render("[✓]")
	switch pct := u.Percent(); {
	case pct >= 100:
		badge = st.bad.Render("[✗]")
	case pct >= 80:
		badge = st.warn.Render("[⚠]")
	}

	var b strings.Builder
	b.WriteString(st.header.Render(" Usage ") + "\n")
	b.WriteString(st.label.Render("  Plan: ") + st.value.Render(u.Plan) + "\n")
	b.WriteString(st.label.Render("  Analyses: ") +
		st.value.Render(fmt.Sprintf("%d / %d", u.Used, u.Limit)) + " " + badge + "\n")
	b.WriteString("  " + bar.ViewAs(float64(u.Percent())/100) + "\n")
	b.WriteString(st.dim.Render(fmt.Sprintf("  %d remaining this period", u.Remaining)) + "\n")
	if u.Remaining == 0 {
		b.WriteString(st.dim.Render("  Upgrade for more analyses: ") + st.value.Render("plk checkout <price-id>") + "\n")
	}
	return b.String()
}
