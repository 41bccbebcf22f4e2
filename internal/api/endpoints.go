package api

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Logical operation names understood by the client.
const (
	OpKanbanBoard        = "kanban.board"
	OpKanbanColumnCreate = "kanban.column.create"
	OpKanbanColumnUpdate = "kanban.column.update"
	OpKanbanColumnDelete = "kanban.column.delete"
	OpKanbanColumnClear  = "kanban.column.clear"
	OpKanbanColumnMove   = "kanban.column.move"
	OpKanbanTaskCreate   = "kanban.task.create"
	OpKanbanTaskUpdate   = "kanban.task.update"
	OpKanbanTaskDelete   = "kanban.task.delete"
	OpKanbanTaskMove     = "kanban.task.move"

	OpSubmissionList  = "submission.list"
	OpSubmissionDraft = "submission.draft"

	OpCampaignCount = "campaign.count"
	OpCampaignPitch = "campaign.pitch"
)

// Params fill {name} placeholders in endpoint templates.
type Params map[string]string

// Endpoints maps logical operation names to URL templates relative to the
// API base, e.g. "/api/kanban/task/{taskId}".
type Endpoints map[string]string

// DefaultEndpoints returns the platform's endpoint table.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		OpKanbanBoard:        "/api/kanban/board",
		OpKanbanColumnCreate: "/api/kanban/column",
		OpKanbanColumnUpdate: "/api/kanban/column/{columnId}",
		OpKanbanColumnDelete: "/api/kanban/column/{columnId}",
		OpKanbanColumnClear:  "/api/kanban/column/{columnId}/clear",
		OpKanbanColumnMove:   "/api/kanban/column/move",
		OpKanbanTaskCreate:   "/api/kanban/task",
		OpKanbanTaskUpdate:   "/api/kanban/task/{taskId}",
		OpKanbanTaskDelete:   "/api/kanban/task/{taskId}",
		OpKanbanTaskMove:     "/api/kanban/task/move",

		OpSubmissionList:  "/api/submission?userId={userId}&campaignId={campaignId}",
		OpSubmissionDraft: "/api/submission/draft",

		OpCampaignCount: "/api/campaign/count",
		OpCampaignPitch: "/api/campaign/pitch",
	}
}

// Merge returns a copy of e with overrides applied.
func (e Endpoints) Merge(overrides map[string]string) Endpoints {
	out := make(Endpoints, len(e)+len(overrides))
	for k, v := range e {
		out[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) != "" {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

// Resolve expands the template for op. Placeholder values are escaped for
// their position (path segment or query value). Every placeholder must be
// supplied.
func (e Endpoints) Resolve(op string, params Params) (*url.URL, error) {
	tmpl, ok := e[op]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %q", op)
	}

	path, query, _ := strings.Cut(tmpl, "?")
	expandedPath, err := expand(path, params, url.PathEscape)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", op, err)
	}
	rel := &url.URL{Path: expandedPath}
	if query != "" {
		expandedQuery, err := expand(query, params, url.QueryEscape)
		if err != nil {
			return nil, fmt.Errorf("endpoint %s: %w", op, err)
		}
		rel.RawQuery = expandedQuery
	}
	return rel, nil
}

// Ops lists the configured operation names.
func (e Endpoints) Ops() []string {
	ops := make([]string, 0, len(e))
	for op := range e {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func expand(tmpl string, params Params, escape func(string) string) (string, error) {
	var b strings.Builder
	for {
		start := strings.IndexByte(tmpl, '{')
		if start < 0 {
			b.WriteString(tmpl)
			return b.String(), nil
		}
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated placeholder in %q", tmpl)
		}
		name := tmpl[start+1 : start+end]
		value, ok := params[name]
		if !ok || value == "" {
			return "", fmt.Errorf("missing parameter %q", name)
		}
		b.WriteString(tmpl[:start])
		b.WriteString(escape(value))
		tmpl = tmpl[start+end+1:]
	}
}
