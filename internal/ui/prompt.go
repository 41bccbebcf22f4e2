package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
)

type promptKind int

const (
	promptNone promptKind = iota
	promptNewTask
	promptNewColumn
	promptDeleteColumn
	promptUploadCampaign
	promptUploadSubmission
	promptUploadFile
)

// prompt is the single-line input shown in the footer. Upload prompts chain:
// each step carries the values entered before it.
type prompt struct {
	kind   promptKind
	input  textinput.Model
	target string // column id for task and column prompts

	campaignID   string
	submissionID string
}

func newPrompt(kind promptKind, value string) prompt {
	in := textinput.New()
	in.Prompt = promptLabel(kind) + " "
	in.CharLimit = 256
	in.SetValue(value)
	in.CursorEnd()
	in.Focus()
	return prompt{kind: kind, input: in}
}

func (p prompt) active() bool {
	return p.kind != promptNone
}

func (p prompt) value() string {
	return strings.TrimSpace(p.input.Value())
}

// next returns the following step of a chained prompt carrying p's values.
func (p prompt) next(kind promptKind, value string) prompt {
	n := newPrompt(kind, value)
	n.target = p.target
	n.campaignID = p.campaignID
	n.submissionID = p.submissionID
	return n
}

func promptLabel(kind promptKind) string {
	switch kind {
	case promptNewTask:
		return "Task name:"
	case promptNewColumn:
		return "Column name:"
	case promptDeleteColumn:
		return "Delete column and its tasks? (y/N)"
	case promptUploadCampaign:
		return "Campaign id:"
	case promptUploadSubmission:
		return "Submission id:"
	case promptUploadFile:
		return "Video file:"
	default:
		return ""
	}
}
