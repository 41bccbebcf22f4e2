package kanban

import (
	"strings"
	"time"
)

const dueDateLayout = "2006-01-02"

// Board mirrors the payload of /api/kanban/board.
type Board struct {
	Columns []Column        `json:"columns"`
	Tasks   map[string]Task `json:"tasks"`
}

// Column is an ordered list of task ids.
type Column struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	TaskIDs []string `json:"taskIds"`
}

// Task is one card on the board.
type Task struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Status      string   `json:"status,omitempty"`
	Assignee    string   `json:"assignee,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Labels      []string `json:"labels,omitempty"`
}

// ParsedDueDate returns the due date, or zero when unset or unparseable.
func (t Task) ParsedDueDate() time.Time {
	value := strings.TrimSpace(t.DueDate)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	if parsed, err := time.ParseInLocation(dueDateLayout, value, time.Local); err == nil {
		return parsed
	}
	return time.Time{}
}

// Column returns the column with id.
func (b Board) Column(id string) (Column, bool) {
	if i := b.columnIndex(id); i >= 0 {
		return b.Columns[i], true
	}
	return Column{}, false
}

// ColumnOf returns the id of the column holding taskID.
func (b Board) ColumnOf(taskID string) (string, bool) {
	for _, col := range b.Columns {
		for _, id := range col.TaskIDs {
			if id == taskID {
				return col.ID, true
			}
		}
	}
	return "", false
}

// ColumnTasks returns the tasks of a column in display order. Ids without a
// task record are skipped.
func (b Board) ColumnTasks(columnID string) []Task {
	col, ok := b.Column(columnID)
	if !ok {
		return nil
	}
	out := make([]Task, 0, len(col.TaskIDs))
	for _, id := range col.TaskIDs {
		if task, ok := b.Tasks[id]; ok {
			out = append(out, task)
		}
	}
	return out
}

func (b Board) columnIndex(id string) int {
	for i, col := range b.Columns {
		if col.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of b.
func (b Board) Clone() Board {
	out := Board{
		Columns: make([]Column, len(b.Columns)),
		Tasks:   make(map[string]Task, len(b.Tasks)),
	}
	for i, col := range b.Columns {
		col.TaskIDs = append([]string(nil), col.TaskIDs...)
		out.Columns[i] = col
	}
	for id, task := range b.Tasks {
		task.Labels = append([]string(nil), task.Labels...)
		out.Tasks[id] = task
	}
	return out
}
