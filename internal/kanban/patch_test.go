package kanban

import (
	"reflect"
	"testing"
	"time"
)

func sampleBoard() Board {
	return Board{
		Columns: []Column{
			{ID: "c1", Name: "Todo", TaskIDs: []string{"t1", "t2"}},
			{ID: "c2", Name: "Doing", TaskIDs: []string{"t3"}},
			{ID: "c3", Name: "Done"},
		},
		Tasks: map[string]Task{
			"t1": {ID: "t1", Name: "Brief", Labels: []string{"brand"}},
			"t2": {ID: "t2", Name: "Script"},
			"t3": {ID: "t3", Name: "Shoot"},
		},
	}
}

func columnIDs(b Board) []string {
	out := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		out = append(out, c.ID)
	}
	return out
}

func TestPatches(t *testing.T) {
	tests := []struct {
		name  string
		apply func(Board) Board
		check func(t *testing.T, b Board)
	}{
		{
			name:  "add column",
			apply: func(b Board) Board { return AddColumn(b, Column{ID: "c4", Name: "Review"}) },
			check: func(t *testing.T, b Board) {
				if got := columnIDs(b); !reflect.DeepEqual(got, []string{"c1", "c2", "c3", "c4"}) {
					t.Fatalf("columns = %v", got)
				}
			},
		},
		{
			name:  "rename column",
			apply: func(b Board) Board { return RenameColumn(b, "c2", "In progress") },
			check: func(t *testing.T, b Board) {
				if col, _ := b.Column("c2"); col.Name != "In progress" {
					t.Fatalf("name = %q", col.Name)
				}
			},
		},
		{
			name:  "remove column drops its tasks",
			apply: func(b Board) Board { return RemoveColumn(b, "c1") },
			check: func(t *testing.T, b Board) {
				if got := columnIDs(b); !reflect.DeepEqual(got, []string{"c2", "c3"}) {
					t.Fatalf("columns = %v", got)
				}
				if len(b.Tasks) != 1 {
					t.Fatalf("tasks = %v, want only t3", b.Tasks)
				}
			},
		},
		{
			name:  "clear column",
			apply: func(b Board) Board { return ClearColumn(b, "c1") },
			check: func(t *testing.T, b Board) {
				col, _ := b.Column("c1")
				if len(col.TaskIDs) != 0 || len(b.Tasks) != 1 {
					t.Fatalf("column = %+v tasks = %v", col, b.Tasks)
				}
			},
		},
		{
			name:  "reorder columns",
			apply: func(b Board) Board { return ReorderColumns(b, "c3", 0) },
			check: func(t *testing.T, b Board) {
				if got := columnIDs(b); !reflect.DeepEqual(got, []string{"c3", "c1", "c2"}) {
					t.Fatalf("columns = %v", got)
				}
			},
		},
		{
			name:  "add task",
			apply: func(b Board) Board { return AddTask(b, "c3", Task{ID: "t4", Name: "Post"}) },
			check: func(t *testing.T, b Board) {
				col, _ := b.Column("c3")
				if !reflect.DeepEqual(col.TaskIDs, []string{"t4"}) || b.Tasks["t4"].Name != "Post" {
					t.Fatalf("column = %+v", col)
				}
			},
		},
		{
			name:  "add task to missing column",
			apply: func(b Board) Board { return AddTask(b, "nope", Task{ID: "t4"}) },
			check: func(t *testing.T, b Board) {
				if _, ok := b.Tasks["t4"]; ok {
					t.Fatal("task added without a column")
				}
			},
		},
		{
			name:  "update task",
			apply: func(b Board) Board { return UpdateTask(b, Task{ID: "t2", Name: "Script v2", Priority: "high"}) },
			check: func(t *testing.T, b Board) {
				if task := b.Tasks["t2"]; task.Name != "Script v2" || task.Priority != "high" {
					t.Fatalf("task = %+v", task)
				}
			},
		},
		{
			name:  "update unknown task",
			apply: func(b Board) Board { return UpdateTask(b, Task{ID: "ghost"}) },
			check: func(t *testing.T, b Board) {
				if _, ok := b.Tasks["ghost"]; ok {
					t.Fatal("unknown task inserted")
				}
			},
		},
		{
			name:  "move task across columns",
			apply: func(b Board) Board { return MoveTask(b, "t1", "c2", 0) },
			check: func(t *testing.T, b Board) {
				c1, _ := b.Column("c1")
				c2, _ := b.Column("c2")
				if !reflect.DeepEqual(c1.TaskIDs, []string{"t2"}) || !reflect.DeepEqual(c2.TaskIDs, []string{"t1", "t3"}) {
					t.Fatalf("c1 = %v c2 = %v", c1.TaskIDs, c2.TaskIDs)
				}
			},
		},
		{
			name:  "move task within column appends on negative index",
			apply: func(b Board) Board { return MoveTask(b, "t1", "c1", -1) },
			check: func(t *testing.T, b Board) {
				c1, _ := b.Column("c1")
				if !reflect.DeepEqual(c1.TaskIDs, []string{"t2", "t1"}) {
					t.Fatalf("c1 = %v", c1.TaskIDs)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleBoard()
			out := tt.apply(in)
			tt.check(t, out)
			if !reflect.DeepEqual(in, sampleBoard()) {
				t.Fatalf("patch modified its input: %+v", in)
			}
		})
	}
}

func TestRemoveTask_DeleteFromOnlyColumn(t *testing.T) {
	in := Board{
		Columns: []Column{{ID: "c1", TaskIDs: []string{"t1"}}},
		Tasks:   map[string]Task{"t1": {ID: "t1", Name: "Brief"}},
	}
	out := RemoveTask(in, "t1")
	if len(out.Columns) != 1 || out.Columns[0].ID != "c1" || len(out.Columns[0].TaskIDs) != 0 {
		t.Fatalf("columns = %+v", out.Columns)
	}
	if len(out.Tasks) != 0 {
		t.Fatalf("tasks = %v, want empty", out.Tasks)
	}
	if len(in.Columns[0].TaskIDs) != 1 {
		t.Fatal("input board modified")
	}
}

func TestBoardHelpers(t *testing.T) {
	b := sampleBoard()
	if col, ok := b.ColumnOf("t3"); !ok || col != "c2" {
		t.Fatalf("ColumnOf(t3) = %q, %v", col, ok)
	}
	if _, ok := b.ColumnOf("ghost"); ok {
		t.Fatal("ColumnOf(ghost) found a column")
	}
	tasks := b.ColumnTasks("c1")
	if len(tasks) != 2 || tasks[0].ID != "t1" {
		t.Fatalf("ColumnTasks = %+v", tasks)
	}
	if Summary(b) != "3 columns, 3 tasks" {
		t.Fatalf("Summary = %q", Summary(b))
	}
}

func TestTask_ParsedDueDate(t *testing.T) {
	if !(Task{}).ParsedDueDate().IsZero() {
		t.Fatal("empty due date should be zero")
	}
	if got := (Task{DueDate: "2026-03-01"}).ParsedDueDate(); got.Year() != 2026 || got.Month() != time.March {
		t.Fatalf("date-only due date = %v", got)
	}
	if got := (Task{DueDate: "2026-03-01T10:00:00Z"}).ParsedDueDate(); got.Hour() != 10 {
		t.Fatalf("RFC3339 due date = %v", got)
	}
	if !(Task{DueDate: "soon"}).ParsedDueDate().IsZero() {
		t.Fatal("garbage due date should be zero")
	}
}
