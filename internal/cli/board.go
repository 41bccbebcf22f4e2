package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/kanban"
)

// BoardCmd returns the board command and its editing subcommands.
func BoardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print the kanban board",
		Long: `Print the kanban board, or edit it with a subcommand.

Examples:
  deck board
  deck board column add "In review"
  deck board task add COLUMN_ID "Write hook script"
  deck board task move TASK_ID COLUMN_ID --index 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
				b, err := rt.Kanban.Board(ctx)
				if err != nil {
					return fmt.Errorf("load board: %w", err)
				}
				printBoard(cmd.OutOrStdout(), b)
				return nil
			})
		},
	}
	cmd.AddCommand(boardColumnCmd(), boardTaskCmd())
	return cmd
}

func boardColumnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "column",
		Short: "Add, rename, clear, move or remove columns",
	}

	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a column",
		Args:  cobra.ExactArgs(1),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			col, err := rt.Kanban.CreateColumn(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created column %s: %s\n", okMark(), col.ID, col.Name)
			return nil
		}),
	}
	rename := &cobra.Command{
		Use:   "rename [column-id] [name]",
		Short: "Rename a column",
		Args:  cobra.ExactArgs(2),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			if err := rt.Kanban.RenameColumn(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed column %s\n", okMark(), args[0])
			return nil
		}),
	}
	clearCol := &cobra.Command{
		Use:   "clear [column-id]",
		Short: "Remove every task from a column",
		Args:  cobra.ExactArgs(1),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			if err := rt.Kanban.ClearColumn(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared column %s\n", okMark(), args[0])
			return nil
		}),
	}
	move := &cobra.Command{
		Use:   "move [column-id] [index]",
		Short: "Move a column to a position",
		Args:  cobra.ExactArgs(2),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			var index int
			if _, err := fmt.Sscan(args[1], &index); err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}
			if err := rt.Kanban.MoveColumn(ctx, args[0], index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Moved column %s to %d\n", okMark(), args[0], index)
			return nil
		}),
	}
	rm := &cobra.Command{
		Use:   "rm [column-id]",
		Short: "Delete a column and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			if err := rt.Kanban.DeleteColumn(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted column %s\n", okMark(), args[0])
			return nil
		}),
	}
	cmd.AddCommand(add, rename, clearCol, move, rm)
	return cmd
}

func boardTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Add, edit, move or remove tasks",
	}

	add := &cobra.Command{
		Use:   "add [column-id] [name]",
		Short: "Add a task to a column",
		Args:  cobra.ExactArgs(2),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			task := kanban.Task{Name: args[1]}
			task.Description, _ = cmd.Flags().GetString("description")
			task.Priority, _ = cmd.Flags().GetString("priority")
			task.DueDate, _ = cmd.Flags().GetString("due")
			created, err := rt.Kanban.CreateTask(ctx, args[0], task)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created task %s: %s\n", okMark(), created.ID, created.Name)
			return nil
		}),
	}
	add.Flags().StringP("description", "d", "", "task description")
	add.Flags().StringP("priority", "p", "", "task priority")
	add.Flags().String("due", "", "due date (YYYY-MM-DD)")

	edit := &cobra.Command{
		Use:   "edit [task-id]",
		Short: "Change a task's fields",
		Args:  cobra.ExactArgs(1),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			b, err := rt.Kanban.Board(ctx)
			if err != nil {
				return fmt.Errorf("load board: %w", err)
			}
			task, ok := b.Tasks[args[0]]
			if !ok {
				return fmt.Errorf("task %s not found", args[0])
			}
			for flag, dst := range map[string]*string{
				"name":        &task.Name,
				"description": &task.Description,
				"priority":    &task.Priority,
				"status":      &task.Status,
				"assignee":    &task.Assignee,
				"due":         &task.DueDate,
			} {
				if cmd.Flags().Changed(flag) {
					*dst, _ = cmd.Flags().GetString(flag)
				}
			}
			if err := rt.Kanban.UpdateTask(ctx, task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated task %s\n", okMark(), task.ID)
			return nil
		}),
	}
	edit.Flags().String("name", "", "task name")
	edit.Flags().String("description", "", "task description")
	edit.Flags().String("priority", "", "task priority")
	edit.Flags().String("status", "", "task status")
	edit.Flags().String("assignee", "", "assignee")
	edit.Flags().String("due", "", "due date (YYYY-MM-DD)")

	move := &cobra.Command{
		Use:   "move [task-id] [column-id]",
		Short: "Move a task to a column",
		Args:  cobra.ExactArgs(2),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			index, _ := cmd.Flags().GetInt("index")
			if err := rt.Kanban.MoveTask(ctx, args[0], args[1], index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Moved task %s to %s\n", okMark(), args[0], args[1])
			return nil
		}),
	}
	move.Flags().Int("index", -1, "position in the column (default: end)")

	rm := &cobra.Command{
		Use:   "rm [task-id]",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: boardEdit(func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error {
			if err := rt.Kanban.DeleteTask(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted task %s\n", okMark(), args[0])
			return nil
		}),
	}
	cmd.AddCommand(add, edit, move, rm)
	return cmd
}

// boardEdit loads the board before fn runs so the optimistic patch has
// something to apply to.
func boardEdit(fn func(ctx context.Context, rt *app.Runtime, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, true, func(ctx context.Context, rt *app.Runtime) error {
			if _, err := rt.Kanban.Board(ctx); err != nil {
				return fmt.Errorf("load board: %w", err)
			}
			return fn(ctx, rt, cmd, args)
		})
	}
}

// printBoard writes one block per column.
func printBoard(w io.Writer, b kanban.Board) {
	if len(b.Columns) == 0 {
		fmt.Fprintln(w, color.New(color.Faint).Sprint("(empty board)"))
		return
	}
	for i, col := range b.Columns {
		if i > 0 {
			fmt.Fprintln(w)
		}
		tasks := b.ColumnTasks(col.ID)
		fmt.Fprintf(w, "%s %s\n",
			color.New(color.Bold).Sprint(col.Name),
			color.New(color.Faint).Sprintf("(%s, %d)", col.ID, len(tasks)))
		for _, t := range tasks {
			fmt.Fprintf(w, "  %s %s%s\n", color.New(color.FgCyan).Sprint(t.ID), t.Name, taskBadges(t))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, color.New(color.Faint).Sprint(kanban.Summary(b)))
}

func taskBadges(t kanban.Task) string {
	var parts []string
	if p := strings.TrimSpace(t.Priority); p != "" {
		parts = append(parts, priorityColor(p).Sprint(p))
	}
	if t.Assignee != "" {
		parts = append(parts, "@"+t.Assignee)
	}
	if due := t.ParsedDueDate(); !due.IsZero() {
		parts = append(parts, "due "+due.Format("Jan 2"))
	}
	if len(t.Labels) > 0 {
		parts = append(parts, "#"+strings.Join(t.Labels, " #"))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, "  ")
}

func priorityColor(p string) *color.Color {
	switch strings.ToLower(p) {
	case "high", "urgent":
		return color.New(color.FgRed)
	case "medium":
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}
