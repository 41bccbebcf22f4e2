package kanban

// Patches return a new board and never modify their input. Operations on
// ids that are not on the board return an unchanged copy.

// AddColumn appends col.
func AddColumn(b Board, col Column) Board {
	out := b.Clone()
	col.TaskIDs = append([]string(nil), col.TaskIDs...)
	out.Columns = append(out.Columns, col)
	return out
}

// RenameColumn sets the name of column id.
func RenameColumn(b Board, id, name string) Board {
	out := b.Clone()
	if i := out.columnIndex(id); i >= 0 {
		out.Columns[i].Name = name
	}
	return out
}

// RemoveColumn drops column id and its tasks.
func RemoveColumn(b Board, id string) Board {
	out := b.Clone()
	i := out.columnIndex(id)
	if i < 0 {
		return out
	}
	for _, taskID := range out.Columns[i].TaskIDs {
		delete(out.Tasks, taskID)
	}
	out.Columns = append(out.Columns[:i], out.Columns[i+1:]...)
	return out
}

// ClearColumn removes every task from column id.
func ClearColumn(b Board, id string) Board {
	out := b.Clone()
	i := out.columnIndex(id)
	if i < 0 {
		return out
	}
	for _, taskID := range out.Columns[i].TaskIDs {
		delete(out.Tasks, taskID)
	}
	out.Columns[i].TaskIDs = nil
	return out
}

// ReorderColumns moves column id to index, clamped to the board.
func ReorderColumns(b Board, id string, index int) Board {
	out := b.Clone()
	from := out.columnIndex(id)
	if from < 0 {
		return out
	}
	col := out.Columns[from]
	out.Columns = append(out.Columns[:from], out.Columns[from+1:]...)
	index = clampIndex(index, len(out.Columns))
	out.Columns = append(out.Columns[:index], append([]Column{col}, out.Columns[index:]...)...)
	return out
}

// AddTask appends task to column columnID.
func AddTask(b Board, columnID string, task Task) Board {
	out := b.Clone()
	i := out.columnIndex(columnID)
	if i < 0 {
		return out
	}
	task.Labels = append([]string(nil), task.Labels...)
	out.Tasks[task.ID] = task
	out.Columns[i].TaskIDs = append(out.Columns[i].TaskIDs, task.ID)
	return out
}

// UpdateTask replaces the stored task with the same id.
func UpdateTask(b Board, task Task) Board {
	out := b.Clone()
	if _, ok := out.Tasks[task.ID]; ok {
		task.Labels = append([]string(nil), task.Labels...)
		out.Tasks[task.ID] = task
	}
	return out
}

// RemoveTask deletes task id from the board.
func RemoveTask(b Board, id string) Board {
	out := b.Clone()
	delete(out.Tasks, id)
	for i := range out.Columns {
		out.Columns[i].TaskIDs = without(out.Columns[i].TaskIDs, id)
	}
	return out
}

// MoveTask places task id in column toColumn at index, clamped.
func MoveTask(b Board, id, toColumn string, index int) Board {
	out := b.Clone()
	to := out.columnIndex(toColumn)
	if to < 0 {
		return out
	}
	if _, ok := out.Tasks[id]; !ok {
		return out
	}
	for i := range out.Columns {
		out.Columns[i].TaskIDs = without(out.Columns[i].TaskIDs, id)
	}
	ids := out.Columns[to].TaskIDs
	index = clampIndex(index, len(ids))
	ids = append(ids[:index], append([]string{id}, ids[index:]...)...)
	out.Columns[to].TaskIDs = ids
	return out
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clampIndex(index, n int) int {
	if index < 0 || index > n {
		return n
	}
	return index
}
