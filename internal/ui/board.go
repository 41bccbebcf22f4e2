package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cultcreative/deck/internal/kanban"
)

const minColumnWidth = 22

// cursor is the selected column and the selected row within it.
type cursor struct {
	col int
	row int
}

// clamp keeps c inside b. An empty column selects row 0.
func (c cursor) clamp(b kanban.Board) cursor {
	if len(b.Columns) == 0 {
		return cursor{}
	}
	c.col = clampInt(c.col, 0, len(b.Columns)-1)
	n := len(b.ColumnTasks(b.Columns[c.col].ID))
	if n == 0 {
		c.row = 0
	} else {
		c.row = clampInt(c.row, 0, n-1)
	}
	return c
}

// follow returns the cursor that keeps taskID selected after the board
// changed. When the task is gone the position is clamped instead.
func (c cursor) follow(b kanban.Board, taskID string) cursor {
	if taskID != "" {
		if colID, ok := b.ColumnOf(taskID); ok {
			for i, col := range b.Columns {
				if col.ID != colID {
					continue
				}
				for j, t := range b.ColumnTasks(colID) {
					if t.ID == taskID {
						return cursor{col: i, row: j}
					}
				}
			}
		}
	}
	return c.clamp(b)
}

func selectedColumn(b kanban.Board, c cursor) (kanban.Column, bool) {
	if c.col < 0 || c.col >= len(b.Columns) {
		return kanban.Column{}, false
	}
	return b.Columns[c.col], true
}

func selectedTask(b kanban.Board, c cursor) (kanban.Task, bool) {
	col, ok := selectedColumn(b, c)
	if !ok {
		return kanban.Task{}, false
	}
	tasks := b.ColumnTasks(col.ID)
	if c.row < 0 || c.row >= len(tasks) {
		return kanban.Task{}, false
	}
	return tasks[c.row], true
}

// neighborColumn returns the id of the column delta steps from the cursor.
func neighborColumn(b kanban.Board, c cursor, delta int) (string, bool) {
	i := c.col + delta
	if i < 0 || i >= len(b.Columns) || delta == 0 {
		return "", false
	}
	return b.Columns[i].ID, true
}

// renderBoard lays the columns out side by side within width.
func renderBoard(b kanban.Board, c cursor, styles Styles, width, height int) string {
	if len(b.Columns) == 0 {
		return styles.FaintText.Render("No columns yet. Press N to add one.")
	}
	colWidth := minColumnWidth
	if n := len(b.Columns); width > 0 && width/n > colWidth {
		colWidth = width / n
	}
	// Border and padding take four cells.
	inner := colWidth - 4

	blocks := make([]string, 0, len(b.Columns))
	for i, col := range b.Columns {
		tasks := b.ColumnTasks(col.ID)
		lines := []string{
			styles.AccentText.Bold(true).Render(truncate(col.Name, inner-4)) +
				styles.FaintText.Render(fmt.Sprintf(" %d", len(tasks))),
		}
		for j, t := range tasks {
			line := truncate(t.Name, inner)
			if i == c.col && j == c.row {
				line = styles.Selected.Width(inner).Render(line)
			} else {
				line = styles.Text.Render(line)
			}
			lines = append(lines, line)
			if meta := taskMeta(t); meta != "" {
				lines = append(lines, styles.FaintText.Render(truncate(meta, inner)))
			}
		}
		style := styles.Column
		if i == c.col {
			style = styles.ColumnFocus
		}
		style = style.Width(colWidth - 2)
		if height > 2 {
			style = style.Height(height - 2)
		}
		blocks = append(blocks, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

func taskMeta(t kanban.Task) string {
	var parts []string
	if t.Priority != "" {
		parts = append(parts, t.Priority)
	}
	if t.Assignee != "" {
		parts = append(parts, "@"+t.Assignee)
	}
	if due := t.ParsedDueDate(); !due.IsZero() {
		parts = append(parts, due.Format("Jan 2"))
	}
	return strings.Join(parts, " · ")
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
