package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/postdeck/internal/orchestrator"
	"github.com/kingrea/postdeck/internal/queue"
	"github.com/kingrea/postdeck/internal/upload"
)

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	panelStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	panelTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	hintStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	footerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).MarginTop(1)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	labelStyleIdle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	labelStyleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleSucceeded = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleCanceled  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
)

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case statePartBoard:
		content = a.renderBoard(width - 4)
	case stateAccountPicker:
		content = a.renderAccountPicker()
	case stateDeleteConfirm:
		content = a.renderDeleteConfirm()
	case stateHelp:
		content = a.renderHelp()
	}
	sections := []string{
		headerStyle.Render("⬡ POSTDECK"),
		a.renderStatusLine(),
		panelStyle.Width(max(20, width)).Render(content),
	}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, footerStyle.Render(a.statusMsg))
	return strings.Join(sections, "\n")
}

func (a *App) renderStatusLine() string {
	account := a.orch.Account()
	if account == "" {
		account = "(no account)"
	}
	parts := []string{
		fmt.Sprintf("Account: %s", account),
		fmt.Sprintf("Queue: %s", a.config.MediaKind()),
		fmt.Sprintf("Page %d", a.orch.Page()),
	}
	if a.orch.HasMore() {
		parts = append(parts, "more available (m)")
	}
	if a.orch.Loading() != queue.LoadIdle || a.orch.IsUploading() {
		parts = append(parts, a.spin.View())
	}
	line := strings.Join(parts, " · ")
	if msg := a.orch.Err(); msg != "" {
		line += "\n" + errStyle.Render("⚠ "+msg)
	}
	return line
}

func (a *App) renderBoard(width int) string {
	entries := a.orch.Entries()
	title := panelTitleStyle.Render(fmt.Sprintf("Pending Parts (%d)", len(entries)))
	if len(entries) == 0 {
		note := dimStyle.Render("Queue is empty. Press r to refresh.")
		return lipgloss.JoinVertical(lipgloss.Left, title, note, a.renderBoardHints())
	}
	var rows []string
	for i, entry := range entries {
		rows = append(rows, a.renderPartRow(entry, i == a.partCursor, width))
		if i == a.partCursor {
			rows = append(rows, a.renderPartDetail(entry, width))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"), a.renderBoardHints())
}

func (a *App) renderPartRow(entry orchestrator.Entry, selected bool, width int) string {
	indicator := " "
	if selected {
		indicator = ">"
	}
	part := entry.Part
	label := sessionLabel(entry.Session)
	line := fmt.Sprintf("%s %s · %d/%d selected · [%s]",
		indicator, part.Key, entry.Selection.Count(), len(part.Media), label)
	if preview := strings.TrimSpace(part.TitlePreview); preview != "" {
		line += " · " + truncate(preview, max(10, width-len(part.Key)-30))
	}
	style := lipgloss.NewStyle()
	if selected {
		style = style.Bold(true)
	}
	return style.Render(line)
}

func (a *App) renderPartDetail(entry orchestrator.Entry, width int) string {
	part := entry.Part
	draft := a.ensureDraft(part)

	var media []string
	for i, item := range part.Media {
		cursor := " "
		if i == a.mediaCursor && a.boardFocus == focusParts {
			cursor = ">"
		}
		mark := " "
		if entry.Selection.Selected(item) {
			mark = "x"
		}
		media = append(media, fmt.Sprintf("  %s [%s] %s", cursor, mark, filepath.Base(item)))
	}

	flair := "(none · press f)"
	if id := a.flairID(draft); id != "" {
		flair = a.orch.Flairs()[draft.flairIdx].Label
	}
	nsfw := "no"
	if draft.nsfw {
		nsfw = "yes"
	}
	form := []string{
		fmt.Sprintf("  Caption: %s", draft.caption.View()),
		fmt.Sprintf("  Flair: %s · NSFW: %s", flair, nsfw),
	}
	if line := sessionDetail(entry.Session); line != "" {
		form = append(form, "  "+line)
	}
	body := strings.Join(append(media, form...), "\n")
	return dimStyle.Render(body)
}

func (a *App) renderBoardHints() string {
	return hintStyle.Render(strings.Join([]string{
		"space=select  x=delete  enter=publish  c=cancel",
		"r=refresh  m=more  a=account  f=flair  n=nsfw  tab=caption  ?=help  q=quit",
	}, "\n"))
}

func (a *App) renderAccountPicker() string {
	view := a.accountMenu.View()
	if strings.TrimSpace(view) == "" {
		view = "No accounts available"
	}
	hint := hintStyle.Render("Enter → select account    Esc → cancel")
	return lipgloss.JoinVertical(lipgloss.Left, view, hint)
}

func (a *App) renderDeleteConfirm() string {
	lines := []string{
		panelTitleStyle.Render("Delete media item?"),
		"",
		fmt.Sprintf("  %s", a.deleteItem),
		fmt.Sprintf("  from part %s", a.deleteKey),
		"",
		errStyle.Render("  This removes the file from the staging server."),
	}
	hint := hintStyle.Render("y → delete    n/Esc → keep")
	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(lines, "\n"), hint)
}

func (a *App) renderHelp() string {
	rows := []string{
		panelTitleStyle.Render("Keys"),
		"",
		"  ↑/k ↓/j     move between parts",
		"  ←/h →/l     move between media items",
		"  space       toggle the item under the cursor",
		"  x           delete the item under the cursor (confirmed)",
		"  enter       publish the focused part",
		"  c           cancel the focused part's publish",
		"  r           refresh (clears the board, reloads page 1)",
		"  m           load the next page",
		"  a           switch account",
		"  f           cycle the focused part's flair",
		"  n           toggle NSFW for the focused part",
		"  tab         edit the focused part's caption",
		"  q / ctrl+c  quit",
	}
	hint := hintStyle.Render("Esc → back")
	return lipgloss.JoinVertical(lipgloss.Left, strings.Join(rows, "\n"), hint)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := panelTitleStyle.Render(fmt.Sprintf("LOG · %s", fileName))
	body := hintStyle.MarginTop(0).Render(strings.Join(lines, "\n"))
	return panelStyle.Render(fmt.Sprintf("%s\n%s", head, body))
}

func sessionLabel(sess *upload.Session) string {
	switch sess.State() {
	case upload.StateSubmitting:
		return labelStyleRunning.Render("Publishing")
	case upload.StateSucceeded:
		return labelStyleSucceeded.Render("Published")
	case upload.StateFailed:
		return labelStyleFailed.Render("Failed")
	case upload.StateCanceled:
		return labelStyleCanceled.Render("Canceled")
	default:
		return labelStyleIdle.Render("Pending")
	}
}

func sessionDetail(sess *upload.Session) string {
	switch sess.State() {
	case upload.StateFailed:
		return errStyle.Render("Error: " + sess.Reason())
	case upload.StateSucceeded:
		if url := sess.URL(); url != "" {
			return "Posted: " + url
		}
	}
	return ""
}

// truncate shortens value to limit characters. Counts runes, not bytes;
// title previews carry user names in arbitrary scripts.
func truncate(value string, limit int) string {
	if limit <= 1 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
