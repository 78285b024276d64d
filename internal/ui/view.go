package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nibzard/stickyboard/internal/board"
	"github.com/nibzard/stickyboard/internal/task"
)

const cardWidth = 24

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	labelStyle    = lipgloss.NewStyle().Width(10)
	focusedStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	activeSort    = lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	inactiveSort  = lipgloss.NewStyle().Padding(0, 1)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	overlayStyle  = lipgloss.NewStyle().Bold(true)
	selectedFrame = lipgloss.ThickBorder()
	plainFrame    = lipgloss.RoundedBorder()
)

// paletteColors maps task colors to terminal colors.
var paletteColors = map[task.Color]lipgloss.Color{
	task.Color1: lipgloss.Color("229"), // yellow
	task.Color2: lipgloss.Color("218"), // pink
	task.Color3: lipgloss.Color("153"), // blue
}

func noteColor(c task.Color) lipgloss.Color {
	if col, ok := paletteColors[c]; ok {
		return col
	}
	return lipgloss.Color("252")
}

func (m *tuiModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sticky Board") + "\n\n")

	if m.showHelp {
		writeHelp(&b)
		writeFooter(&b)
		return b.String()
	}

	b.WriteString(m.renderForm() + "\n")
	b.WriteString(m.renderSort() + "\n\n")
	b.WriteString(m.renderBoard() + "\n")
	b.WriteString(m.renderStatus() + "\n")
	writeFooter(&b)
	return b.String()
}

func (m *tuiModel) renderForm() string {
	form := m.board.Form()
	rows := []string{
		m.formRow(focusText, "Task", form.Text, fmt.Sprintf("%d/%d", len([]rune(form.Text)), task.MaxTextLength)),
		m.formRow(focusStart, "Start", form.StartDate, "YYYY-MM-DD"),
		m.formRow(focusEnd, "Deadline", form.EndDate, "YYYY-MM-DD"),
	}
	post := mutedStyle.Render("enter to post")
	if m.board.Creating() {
		post = mutedStyle.Render("posting...")
	}
	rows = append(rows, post)

	box := lipgloss.NewStyle().
		Border(plainFrame).
		BorderForeground(noteColor(m.board.NextColor())).
		Padding(0, 1)
	return box.Render(strings.Join(rows, "\n"))
}

func (m *tuiModel) formRow(f focus, label, value, hint string) string {
	l := labelStyle.Render(label + ":")
	if m.focus == f {
		l = labelStyle.Inherit(focusedStyle).Render(label + ":")
		value += "_"
	}
	if value == "" {
		value = mutedStyle.Render(hint)
	}
	return l + " " + value
}

func (m *tuiModel) renderSort() string {
	label := "Sort by:"
	if m.focus == focusSort {
		label = focusedStyle.Render(label)
	}
	parts := []string{label}
	current := m.board.SortKey()
	for i, k := range task.SortKeys() {
		text := fmt.Sprintf("%d %s", i+1, k.Label())
		if k == current {
			parts = append(parts, activeSort.Render(text))
		} else {
			parts = append(parts, inactiveSort.Render(text))
		}
	}
	return strings.Join(parts, " ")
}

func (m *tuiModel) renderBoard() string {
	cards := m.board.Cards()
	if len(cards) == 0 {
		if m.pending > 0 {
			return mutedStyle.Render("Loading...")
		}
		return mutedStyle.Render("No tasks yet.")
	}

	perRow := m.width / (cardWidth + 2)
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	for start := 0; start < len(cards); start += perRow {
		end := start + perRow
		if end > len(cards) {
			end = len(cards)
		}
		rendered := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			rendered = append(rendered, renderCard(cards[i], m.focus == focusBoard && i == m.selected))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(c board.Card, selected bool) string {
	frame := plainFrame
	if selected {
		frame = selectedFrame
	}
	style := lipgloss.NewStyle().
		Width(cardWidth).
		Padding(0, 1).
		Border(frame).
		BorderForeground(noteColor(c.Color())).
		Background(noteColor(c.Color())).
		Foreground(lipgloss.Color("0"))

	text := lipgloss.NewStyle().Strikethrough(c.Overlay()).Render(c.Text())
	dates := fmt.Sprintf("%s -> %s", c.StartLabel(), c.DeadlineLabel())
	lines := []string{text, "", dates}
	if c.Overlay() {
		lines = append(lines, overlayStyle.Render("[done]"))
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *tuiModel) renderStatus() string {
	switch {
	case m.lastErr != nil:
		return errorStyle.Render(m.status)
	case m.pending > 0:
		return mutedStyle.Render("working...")
	case m.status != "":
		return statusStyle.Render(m.status)
	}
	return ""
}

func writeHelp(b *strings.Builder) {
	b.WriteString("Keyboard Shortcuts\n\n")
	b.WriteString("  tab, shift+tab   Move focus: task, start, deadline, sort, board\n")
	b.WriteString("  enter            Post the task (in the form)\n")
	b.WriteString("  backspace        Delete a character\n")
	b.WriteString("  esc              Focus the board\n")
	b.WriteString("  left, right      Change sort (sort focused)\n")
	b.WriteString("  1, 2, 3          Sort by start, deadline, completed\n")
	b.WriteString("  arrows           Select a card (board focused)\n")
	b.WriteString("  c, space         Complete the selected card\n")
	b.WriteString("  d, delete        Delete the selected card\n")
	b.WriteString("  r                Reload\n")
	b.WriteString("  ?                Toggle this help screen\n")
	b.WriteString("  q, ctrl+c        Quit\n\n")
}

func writeFooter(b *strings.Builder) {
	b.WriteString(mutedStyle.Render("Press ? for help | tab to move | q to quit") + "\n")
}
