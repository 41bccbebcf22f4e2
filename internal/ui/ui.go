package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/app"
	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/campaign"
	"github.com/cultcreative/deck/internal/kanban"
	"github.com/cultcreative/deck/internal/notify"
	"github.com/cultcreative/deck/internal/submission"
	"github.com/cultcreative/deck/internal/upload"
)

const noticeTick = time.Second

type (
	boardMsg  cache.Entry
	countMsg  cache.Entry
	uploadMsg upload.Task
	unreadMsg int
	noticeMsg notify.Notice
	tickMsg   time.Time

	// actionMsg carries the result of a write started from a key press.
	// Mutation failures were already reported by the dispatcher.
	actionMsg struct{ err error }
)

// Model is the interactive board.
type Model struct {
	ctx context.Context
	rt  *app.Runtime

	theme  Theme
	styles Styles
	keys   keyMap
	help   help.Model
	bar    progress.Model

	width    int
	height   int
	showHelp bool

	board      kanban.Board
	boardEntry cache.Entry
	cur        cursor

	count      int
	countKnown bool
	countEntry cache.Entry

	unread      int
	unreadKnown bool

	uploads map[string]upload.Task
	notices []notify.Notice

	prompt prompt

	boardCh  <-chan cache.Entry
	countCh  <-chan cache.Entry
	uploadCh <-chan upload.Task
	unreadCh <-chan int
	noticeCh <-chan notify.Notice
	stop     []func()
}

// New returns a board bound to rt. With a nil rt the model only navigates,
// which is enough to drive it from tests.
func New(ctx context.Context, rt *app.Runtime) Model {
	m := Model{
		ctx:     ctx,
		rt:      rt,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		uploads: make(map[string]upload.Task),
	}
	if rt == nil {
		m.setTheme(GetTheme(""))
		return m
	}
	m.setTheme(loadTheme(rt.State))

	var stop func()
	m.boardCh, stop = rt.Cache.Subscribe(kanban.Key)
	m.stop = append(m.stop, stop)
	m.countCh, stop = rt.Cache.Subscribe(campaign.CountKey)
	m.stop = append(m.stop, stop)
	m.uploadCh, stop = rt.Uploads.Subscribe()
	m.stop = append(m.stop, stop)
	m.unreadCh, stop = rt.Inbox.Subscribe()
	m.stop = append(m.stop, stop)
	m.noticeCh, stop = rt.Notices.Subscribe()
	m.stop = append(m.stop, stop)

	m.boardEntry = rt.Kanban.Snapshot()
	if b, ok := cache.Value[kanban.Board](m.boardEntry); ok {
		m.board = b
	}
	m.unread, m.unreadKnown = rt.Inbox.Get()
	for _, t := range rt.Uploads.Tasks() {
		m.uploads[t.SubjectID] = t
	}
	m.notices = rt.Notices.Active()
	return m
}

// Run shows the board until the user quits or ctx is cancelled.
func Run(ctx context.Context, rt *app.Runtime) error {
	m := New(ctx, rt)
	defer m.close()

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (m Model) close() {
	for _, stop := range m.stop {
		stop()
	}
}

func (m *Model) setTheme(t Theme) {
	m.theme = t
	m.styles = t.Styles()
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitEntry(m.boardCh, func(e cache.Entry) tea.Msg { return boardMsg(e) }),
		waitEntry(m.countCh, func(e cache.Entry) tea.Msg { return countMsg(e) }),
		waitUpload(m.uploadCh),
		waitUnread(m.unreadCh),
		waitNotice(m.noticeCh),
		tick(),
	}
	if m.rt != nil {
		rt, ctx := m.rt, m.ctx
		cmds = append(cmds,
			func() tea.Msg {
				_, _ = rt.Kanban.Board(ctx)
				return nil
			},
			func() tea.Msg {
				_, _ = rt.Campaigns.Count(ctx)
				return nil
			},
		)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.bar.Width = clampInt(msg.Width/3, 10, 40)
		return m, nil

	case tea.FocusMsg:
		if m.rt != nil {
			m.rt.Cache.Focus()
		}
		return m, nil

	case boardMsg:
		m.applyBoard(cache.Entry(msg))
		return m, waitEntry(m.boardCh, func(e cache.Entry) tea.Msg { return boardMsg(e) })

	case countMsg:
		m.countEntry = cache.Entry(msg)
		if c, ok := cache.Value[campaign.Count](m.countEntry); ok {
			m.count, m.countKnown = c.Count, true
		} else if !m.countEntry.HasData {
			m.countKnown = false
		}
		return m, waitEntry(m.countCh, func(e cache.Entry) tea.Msg { return countMsg(e) })

	case uploadMsg:
		t := upload.Task(msg)
		if t.Status == upload.Idle {
			delete(m.uploads, t.SubjectID)
		} else {
			m.uploads[t.SubjectID] = t
		}
		return m, waitUpload(m.uploadCh)

	case unreadMsg:
		m.unread, m.unreadKnown = int(msg), true
		return m, waitUnread(m.unreadCh)

	case noticeMsg:
		m.refreshNotices()
		return m, waitNotice(m.noticeCh)

	case tickMsg:
		m.refreshNotices()
		if m.rt != nil {
			m.unread, m.unreadKnown = m.rt.Inbox.Get()
		}
		return m, tick()

	case actionMsg:
		m.report(msg.err)
		return m, nil

	case tea.KeyMsg:
		if m.prompt.active() {
			return m.updatePrompt(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) applyBoard(e cache.Entry) {
	selected := ""
	if t, ok := selectedTask(m.board, m.cur); ok {
		selected = t.ID
	}
	m.boardEntry = e
	if b, ok := cache.Value[kanban.Board](e); ok {
		m.board = b
	} else if !e.HasData {
		m.board = kanban.Board{}
	}
	m.cur = m.cur.follow(m.board, selected)
}

func (m *Model) refreshNotices() {
	if m.rt != nil {
		m.notices = m.rt.Notices.Active()
	}
}

// report surfaces errors nothing else has shown to the user.
func (m *Model) report(err error) {
	if err == nil || m.rt == nil {
		return
	}
	var mErr *apperr.MutationError
	if errors.As(err, &mErr) {
		return
	}
	m.rt.Log.Debug("action failed", zap.Error(err))
	m.rt.Notices.Error(err)
	m.refreshNotices()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Up):
		m.cur.row--
		m.cur = m.cur.clamp(m.board)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.cur.row++
		m.cur = m.cur.clamp(m.board)
		return m, nil
	case key.Matches(msg, m.keys.Left):
		m.cur.col--
		m.cur = m.cur.clamp(m.board)
		return m, nil
	case key.Matches(msg, m.keys.Right):
		m.cur.col++
		m.cur = m.cur.clamp(m.board)
		return m, nil
	}

	if m.rt == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.CycleTheme):
		m.setTheme(GetTheme(NextTheme(m.theme.Name)))
		saveTheme(m.rt.State, m.theme)
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		rt, ctx := m.rt, m.ctx
		return m, func() tea.Msg {
			_, _ = rt.Cache.Revalidate(ctx, kanban.Key)
			_, _ = rt.Cache.Revalidate(ctx, campaign.CountKey)
			return nil
		}

	case key.Matches(msg, m.keys.Dismiss):
		if len(m.notices) > 0 {
			m.rt.Notices.Dismiss(m.notices[0].ID)
			m.refreshNotices()
		}
		return m, nil

	case key.Matches(msg, m.keys.NewTask):
		col, ok := selectedColumn(m.board, m.cur)
		if !ok {
			return m, nil
		}
		m.prompt = newPrompt(promptNewTask, "")
		m.prompt.target = col.ID
		return m, nil

	case key.Matches(msg, m.keys.NewColumn):
		m.prompt = newPrompt(promptNewColumn, "")
		return m, nil

	case key.Matches(msg, m.keys.DeleteTask):
		t, ok := selectedTask(m.board, m.cur)
		if !ok {
			return m, nil
		}
		return m, m.action(func(ctx context.Context) error {
			return m.rt.Kanban.DeleteTask(ctx, t.ID)
		})

	case key.Matches(msg, m.keys.DeleteColumn):
		col, ok := selectedColumn(m.board, m.cur)
		if !ok {
			return m, nil
		}
		m.prompt = newPrompt(promptDeleteColumn, "")
		m.prompt.target = col.ID
		return m, nil

	case key.Matches(msg, m.keys.MoveLeft), key.Matches(msg, m.keys.MoveRight):
		delta := 1
		if key.Matches(msg, m.keys.MoveLeft) {
			delta = -1
		}
		t, ok := selectedTask(m.board, m.cur)
		if !ok {
			return m, nil
		}
		to, ok := neighborColumn(m.board, m.cur, delta)
		if !ok {
			return m, nil
		}
		return m, m.action(func(ctx context.Context) error {
			return m.rt.Kanban.MoveTask(ctx, t.ID, to, -1)
		})

	case key.Matches(msg, m.keys.Upload):
		m.prompt = newPrompt(promptUploadCampaign, m.lastCampaign())
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if t, ok := latestActive(m.uploads); ok {
			m.rt.Uploads.Cancel(t.SubjectID)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Abort):
		m.prompt = prompt{}
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		return m.submitPrompt()
	}

	if m.prompt.kind == promptDeleteColumn {
		p := m.prompt
		m.prompt = prompt{}
		if strings.EqualFold(msg.String(), "y") && m.rt != nil {
			return m, m.action(func(ctx context.Context) error {
				return m.rt.Kanban.DeleteColumn(ctx, p.target)
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	p := m.prompt
	m.prompt = prompt{}
	if m.rt == nil {
		return m, nil
	}
	rt := m.rt

	switch p.kind {
	case promptNewTask:
		return m, m.action(func(ctx context.Context) error {
			_, err := rt.Kanban.CreateTask(ctx, p.target, kanban.Task{Name: p.value()})
			return err
		})

	case promptNewColumn:
		return m, m.action(func(ctx context.Context) error {
			_, err := rt.Kanban.CreateColumn(ctx, p.value())
			return err
		})

	case promptUploadCampaign:
		if p.value() == "" {
			return m, nil
		}
		p.campaignID = p.value()
		m.prompt = p.next(promptUploadSubmission, "")
		return m, nil

	case promptUploadSubmission:
		if p.value() == "" {
			return m, nil
		}
		p.submissionID = p.value()
		m.prompt = p.next(promptUploadFile, "")
		return m, nil

	case promptUploadFile:
		path := expandHome(p.value())
		return m, m.action(func(ctx context.Context) error {
			file, err := upload.FileFromPath(path)
			if err != nil {
				return err
			}
			rt.Tabs.Open(p.campaignID, "")
			_, err = rt.Submissions.SubmitDraft(ctx, submission.Draft{
				UserID:       rt.UserID(),
				CampaignID:   p.campaignID,
				SubmissionID: p.submissionID,
				File:         file,
			})
			return err
		})
	}
	return m, nil
}

// action runs fn off the update loop. Uploads outlive the command, so the
// model's context is used rather than a per-command one.
func (m Model) action(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{err: fn(ctx)}
	}
}

func (m Model) lastCampaign() string {
	if m.rt == nil {
		return ""
	}
	tabs := m.rt.Tabs.List()
	if len(tabs) == 0 {
		return ""
	}
	return tabs[len(tabs)-1].CampaignID
}

// sortedUploads returns tasks oldest first.
func sortedUploads(tasks map[string]upload.Task) []upload.Task {
	out := make([]upload.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func latestActive(tasks map[string]upload.Task) (upload.Task, bool) {
	sorted := sortedUploads(tasks)
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].Status.Active() {
			return sorted[i], true
		}
	}
	return upload.Task{}, false
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func waitEntry(ch <-chan cache.Entry, wrap func(cache.Entry) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(e)
	}
}

func waitUpload(ch <-chan upload.Task) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		t, ok := <-ch
		if !ok {
			return nil
		}
		return uploadMsg(t)
	}
}

func waitUnread(ch <-chan int) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return unreadMsg(n)
	}
}

func waitNotice(ch <-chan notify.Notice) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

func tick() tea.Cmd {
	return tea.Tick(noticeTick, func(t time.Time) tea.Msg { return tickMsg(t) })
}
