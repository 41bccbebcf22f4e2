package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cultcreative/deck/internal/kanban"
	"github.com/cultcreative/deck/internal/notify"
	"github.com/cultcreative/deck/internal/upload"
)

const maxUploadLines = 4

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	uploads := m.renderUploads()
	notices := m.renderNotices()
	footer := m.renderFooter()

	used := lipgloss.Height(header) + lipgloss.Height(footer)
	if uploads != "" {
		used += lipgloss.Height(uploads)
	}
	if notices != "" {
		used += lipgloss.Height(notices)
	}
	board := renderBoard(m.board, m.cur, m.styles, m.width, m.height-used)

	parts := []string{header, board}
	if uploads != "" {
		parts = append(parts, uploads)
	}
	if notices != "" {
		parts = append(parts, notices)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) renderHeader() string {
	s := m.styles
	sep := s.FaintText.Render(" · ")

	left := []string{s.Logo.Render("deck")}
	if m.rt != nil {
		if user := m.rt.UserID(); user != "" {
			left = append(left, s.MutedText.Render(user))
		} else {
			left = append(left, s.WarningText.Render("signed out"))
		}
	}
	if m.unreadKnown {
		style := s.MutedText
		if m.unread > 0 {
			style = s.AccentText
		}
		left = append(left, style.Render(fmt.Sprintf("%d unread", m.unread)))
	}
	if m.countKnown {
		left = append(left, s.MutedText.Render(fmt.Sprintf("%d campaigns", m.count)))
	}
	if m.rt != nil {
		var tabs []string
		for _, t := range m.rt.Tabs.List() {
			name := t.Title
			if name == "" {
				name = t.CampaignID
			}
			tabs = append(tabs, name)
		}
		if len(tabs) > 0 {
			left = append(left, s.FaintText.Render("["+strings.Join(tabs, "] [")+"]"))
		}
	}

	line := strings.Join(left, sep)
	if status := m.boardStatus(); status != "" {
		gap := m.width - lipgloss.Width(line) - lipgloss.Width(status) - 2
		if gap < 1 {
			gap = 1
		}
		line += strings.Repeat(" ", gap) + status
	}
	return s.Header.Width(m.width).Render(line)
}

// boardStatus describes the board entry's fetch state.
func (m Model) boardStatus() string {
	s := m.styles
	e := m.boardEntry
	switch {
	case e.IsOffline():
		return s.DangerText.Render("offline")
	case e.Err != nil:
		return s.WarningText.Render("sync failed")
	case e.IsValidating:
		return s.InfoText.Render("syncing…")
	case e.HasData:
		return s.FaintText.Render(kanban.Summary(m.board))
	default:
		return ""
	}
}

func (m Model) renderUploads() string {
	tasks := sortedUploads(m.uploads)
	if len(tasks) == 0 {
		return ""
	}
	if len(tasks) > maxUploadLines {
		tasks = tasks[len(tasks)-maxUploadLines:]
	}
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, m.uploadLine(t))
	}
	return strings.Join(lines, "\n")
}

func (m Model) uploadLine(t upload.Task) string {
	s := m.styles
	name := t.FileName
	if name == "" {
		name = t.SubjectID
	}
	parts := []string{
		s.StatusStyle(t.Status.String()).Render(t.Status.String()),
		s.Text.Render(truncate(name, 24)),
	}
	switch {
	case t.Status.Active():
		parts = append(parts, m.bar.ViewAs(t.Fraction()),
			s.MutedText.Render(fmt.Sprintf("%3.0f%%", t.Fraction()*100)))
	case t.Status == upload.Failed && t.Err != nil:
		parts = append(parts, s.DangerText.Render(t.Err.Error()))
	}
	return " " + strings.Join(parts, " ")
}

func (m Model) renderNotices() string {
	if len(m.notices) == 0 {
		return ""
	}
	s := m.styles
	lines := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		style := s.InfoText
		switch n.Level {
		case notify.Success:
			style = s.SuccessText
		case notify.Warning:
			style = s.WarningText
		case notify.Error:
			style = s.DangerText
		}
		lines = append(lines, " "+style.Render(n.Message))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	if m.prompt.active() {
		return " " + m.prompt.input.View()
	}
	return " " + m.help.ShortHelpView(m.keys.ShortHelp())
}

func (m Model) renderHelp() string {
	title := m.styles.Logo.Render("deck") + m.styles.MutedText.Render(" keys (any key to close)")
	body := m.help.FullHelpView(m.keys.FullHelp())
	return lipgloss.NewStyle().Padding(1, 2).Render(title + "\n\n" + body)
}
