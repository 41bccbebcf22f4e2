package kanban

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cultcreative/deck/internal/api"
	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/mutation"
)

// Key is the cache key of the board.
const Key = "board"

// API is the subset of *api.Client the board uses.
type API interface {
	Get(ctx context.Context, op string, params api.Params, dest any) error
	Send(ctx context.Context, method, op string, params api.Params, body, dest any) error
}

// Cache is the subset of *cache.Store the board reads from.
type Cache interface {
	Load(ctx context.Context, key string) (cache.Entry, error)
	Read(key string) cache.Entry
}

// Service reads and edits the board.
type Service struct {
	api      API
	cache    Cache
	dispatch *mutation.Dispatcher
	newID    func() string
}

// NewService builds a Service.
func NewService(client API, c Cache, d *mutation.Dispatcher) *Service {
	return &Service{api: client, cache: c, dispatch: d, newID: uuid.NewString}
}

// Fetch loads the board from the server. It is registered as the cache
// fetcher for Key.
func (s *Service) Fetch(ctx context.Context, _ string) (any, error) {
	var b Board
	if err := s.api.Get(ctx, api.OpKanbanBoard, nil, &b); err != nil {
		return nil, err
	}
	if b.Tasks == nil {
		b.Tasks = make(map[string]Task)
	}
	return b, nil
}

// Board returns the board, fetching it when stale. On error the last known
// board is returned with the error.
func (s *Service) Board(ctx context.Context) (Board, error) {
	entry, err := s.cache.Load(ctx, Key)
	b, _ := cache.Value[Board](entry)
	return b, err
}

// Snapshot returns the cached board without blocking.
func (s *Service) Snapshot() cache.Entry {
	return s.cache.Read(Key)
}

// CreateColumn appends a column with a client-generated id.
func (s *Service) CreateColumn(ctx context.Context, name string) (Column, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Column{}, &apperr.ValidationError{Field: "name", Reason: "column name is required"}
	}
	col := Column{ID: s.newID(), Name: name}
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "create column",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return AddColumn(b, col) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPost, api.OpKanbanColumnCreate, nil,
				map[string]string{"id": col.ID, "name": col.Name}, nil)
		},
	})
	return col, err
}

// RenameColumn changes a column's name.
func (s *Service) RenameColumn(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &apperr.ValidationError{Field: "name", Reason: "column name is required"}
	}
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "rename column",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return RenameColumn(b, id, name) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPatch, api.OpKanbanColumnUpdate, api.Params{"columnId": id},
				map[string]string{"name": name}, nil)
		},
	})
	return err
}

// DeleteColumn removes a column and its tasks, then refetches the board.
func (s *Service) DeleteColumn(ctx context.Context, id string) error {
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "delete column",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return RemoveColumn(b, id) }),
		Strategy:   mutation.Revalidate,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodDelete, api.OpKanbanColumnDelete, api.Params{"columnId": id}, nil, nil)
		},
	})
	return err
}

// ClearColumn deletes every task in a column.
func (s *Service) ClearColumn(ctx context.Context, id string) error {
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "clear column",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return ClearColumn(b, id) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPost, api.OpKanbanColumnClear, api.Params{"columnId": id}, nil, nil)
		},
	})
	return err
}

// MoveColumn reorders a column.
func (s *Service) MoveColumn(ctx context.Context, id string, index int) error {
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "move column",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return ReorderColumns(b, id, index) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPost, api.OpKanbanColumnMove, nil,
				map[string]any{"columnId": id, "index": index}, nil)
		},
	})
	return err
}

// CreateTask adds a task to a column. The board is refetched so
// server-assigned fields replace the local guess.
func (s *Service) CreateTask(ctx context.Context, columnID string, task Task) (Task, error) {
	task.Name = strings.TrimSpace(task.Name)
	if task.Name == "" {
		return Task{}, &apperr.ValidationError{Field: "name", Reason: "task name is required"}
	}
	if task.ID == "" {
		task.ID = s.newID()
	}
	body := struct {
		Task
		ColumnID string `json:"columnId"`
	}{Task: task, ColumnID: columnID}
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "create task",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return AddTask(b, columnID, task) }),
		Strategy:   mutation.Revalidate,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPost, api.OpKanbanTaskCreate, nil, body, nil)
		},
	})
	return task, err
}

// UpdateTask saves task's fields.
func (s *Service) UpdateTask(ctx context.Context, task Task) error {
	if task.ID == "" {
		return &apperr.ValidationError{Field: "task", Reason: "task id is required"}
	}
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "update task",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return UpdateTask(b, task) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPatch, api.OpKanbanTaskUpdate, api.Params{"taskId": task.ID}, task, nil)
		},
	})
	return err
}

// MoveTask places a task in a column at index. A negative index appends.
func (s *Service) MoveTask(ctx context.Context, id, toColumn string, index int) error {
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "move task",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return MoveTask(b, id, toColumn, index) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodPost, api.OpKanbanTaskMove, nil,
				map[string]any{"taskId": id, "columnId": toColumn, "index": index}, nil)
		},
	})
	return err
}

// DeleteTask removes a task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	_, err := s.dispatch.Dispatch(ctx, mutation.Mutation{
		Name:       "delete task",
		Key:        Key,
		Optimistic: patch(func(b Board) Board { return RemoveTask(b, id) }),
		Strategy:   mutation.Merge,
		Send: func(ctx context.Context) (any, error) {
			return nil, s.api.Send(ctx, http.MethodDelete, api.OpKanbanTaskDelete, api.Params{"taskId": id}, nil, nil)
		},
	})
	return err
}

// patch adapts a board patch to the cache. Values that are not a Board
// (nothing loaded yet) pass through unchanged.
func patch(fn func(Board) Board) cache.PatchFunc {
	return func(cur any) any {
		b, ok := cur.(Board)
		if !ok {
			return cur
		}
		return fn(b)
	}
}

// Summary is a one-line description of the board for status output.
func Summary(b Board) string {
	return fmt.Sprintf("%d columns, %d tasks", len(b.Columns), len(b.Tasks))
}
