package upload

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/apperr"
)

// ErrCancelled is recorded on tasks stopped by Cancel or superseded by a new
// upload for the same subject.
var ErrCancelled = errors.New("upload cancelled")

// SendFunc performs the upload request. It must honour ctx and report bytes
// handed to the transport through progress.
type SendFunc func(ctx context.Context, f File, progress func(sent, total int64)) error

// Job is one upload request.
type Job struct {
	SubjectID string
	File      File
	Send      SendFunc
	// OnSettled runs once when the task reaches Done, Cancelled or Failed.
	OnSettled func(Task)
}

// Canceller tells the server to abandon processing for a subject.
type Canceller interface {
	CancelProcessing(subjectID string) error
}

// Config holds Controller dependencies.
type Config struct {
	Constraints Constraints
	Canceller   Canceller
	Previews    *Previews
	Logger      *zap.Logger
}

// cancelToken aborts one upload request. Fire is effective once.
type cancelToken struct {
	once   sync.Once
	cancel context.CancelFunc
	fired  atomic.Int32
}

func (t *cancelToken) Fire() {
	t.once.Do(func() {
		t.fired.Add(1)
		t.cancel()
	})
}

func (t *cancelToken) Fired() int {
	return int(t.fired.Load())
}

// release frees the request context without counting as a cancellation.
func (t *cancelToken) release() {
	t.cancel()
}

type tracked struct {
	task      Task
	token     *cancelToken
	onSettled func(Task)
}

// Controller tracks at most one active upload per subject.
type Controller struct {
	constraints Constraints
	canceller   Canceller
	previews    *Previews
	log         *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	tasks   map[string]*tracked
	subs    map[uint64]chan Task
	nextSub uint64
}

// NewController builds a Controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	previews := cfg.Previews
	if previews == nil {
		previews = NewPreviews(nil, logger)
	}
	return &Controller{
		constraints: cfg.Constraints,
		canceller:   cfg.Canceller,
		previews:    previews,
		log:         logger.Named("upload"),
		now:         time.Now,
		tasks:       make(map[string]*tracked),
		subs:        make(map[uint64]chan Task),
	}
}

// Previews returns the preview registry.
func (c *Controller) Previews() *Previews {
	return c.previews
}

// Start validates job and begins the upload in the background. An active
// task for the same subject is cancelled first. Validation failures leave
// existing state untouched.
func (c *Controller) Start(ctx context.Context, job Job) (Task, error) {
	subject := strings.TrimSpace(job.SubjectID)
	if subject == "" {
		return Task{}, &apperr.ValidationError{Field: "subject", Reason: "subject id is required"}
	}
	if job.Send == nil {
		return Task{}, fmt.Errorf("upload %s: no send function", subject)
	}
	if err := c.constraints.Validate(job.File); err != nil {
		return Task{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	token := &cancelToken{cancel: cancel}
	now := c.now()

	c.mu.Lock()
	var superseded []func()
	if prev, ok := c.tasks[subject]; ok && prev.task.Status.Active() {
		c.log.Info("superseding active upload", zap.String("subject", subject))
		prev.token.Fire()
		if fn := c.settleLocked(prev, Cancelled, ErrCancelled); fn != nil {
			superseded = append(superseded, fn)
		}
	}
	tr := &tracked{
		task: Task{
			SubjectID:  subject,
			FileName:   job.File.Name,
			Status:     Uploading,
			BytesTotal: job.File.Size,
			Preview:    c.previews.Create(subject),
			StartedAt:  now,
			UpdatedAt:  now,
		},
		token:     token,
		onSettled: job.OnSettled,
	}
	c.tasks[subject] = tr
	c.broadcastLocked(tr.task)
	snap := tr.task
	c.mu.Unlock()

	for _, fn := range superseded {
		fn()
	}
	go c.run(runCtx, tr, job)
	return snap, nil
}

func (c *Controller) run(ctx context.Context, tr *tracked, job Job) {
	subject := tr.task.SubjectID
	progress := func(sent, total int64) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.tasks[subject] != tr || tr.task.Status != Uploading {
			return
		}
		tr.task.BytesSent = sent
		if total > 0 {
			tr.task.BytesTotal = total
		}
		tr.task.UpdatedAt = c.now()
		c.broadcastLocked(tr.task)
	}

	err := job.Send(ctx, job.File, progress)

	c.mu.Lock()
	if c.tasks[subject] != tr || tr.task.Status != Uploading {
		// Cancelled, superseded or finished by an event while in flight.
		c.mu.Unlock()
		return
	}
	var settled func()
	if err != nil {
		c.log.Warn("upload failed", zap.String("subject", subject), zap.Error(err))
		settled = c.settleLocked(tr, Failed, err)
	} else {
		tr.task.Status = Processing
		tr.task.BytesSent = tr.task.BytesTotal
		tr.task.UpdatedAt = c.now()
		c.broadcastLocked(tr.task)
	}
	c.mu.Unlock()
	if settled != nil {
		settled()
	}
}

// Progress applies a server progress report. Reports for untracked or
// finished subjects are ignored and return false. 100 completes the task.
func (c *Controller) Progress(subject string, percent float64) bool {
	c.mu.Lock()
	tr, ok := c.activeLocked(subject)
	if !ok {
		c.mu.Unlock()
		c.log.Debug("ignoring progress", zap.String("subject", subject), zap.Error(apperr.ErrStaleEvent))
		return false
	}
	percent = clamp(percent, 0, 100)
	if percent < tr.task.Percent {
		c.mu.Unlock()
		return true
	}
	var settled func()
	if percent >= 100 {
		tr.task.Percent = 100
		settled = c.settleLocked(tr, Done, nil)
	} else {
		tr.task.Percent = percent
		tr.task.UpdatedAt = c.now()
		c.broadcastLocked(tr.task)
	}
	c.mu.Unlock()
	if settled != nil {
		settled()
	}
	return true
}

// Complete marks subject Done.
func (c *Controller) Complete(subject string) bool {
	return c.finish(subject, Done, nil, false)
}

// Fail marks subject Failed and aborts its request.
func (c *Controller) Fail(subject string, err error) bool {
	if err == nil {
		err = errors.New("upload failed")
	}
	return c.finish(subject, Failed, err, true)
}

// Cancel aborts subject's upload and asks the server to stop processing it.
func (c *Controller) Cancel(subject string) bool {
	if !c.finish(subject, Cancelled, ErrCancelled, true) {
		return false
	}
	if c.canceller != nil {
		if err := c.canceller.CancelProcessing(subject); err != nil {
			c.log.Debug("cancel-processing not delivered", zap.String("subject", subject), zap.Error(err))
		}
	}
	return true
}

// Release forgets subject, aborting it first when active. Views call it when
// they stop showing the subject.
func (c *Controller) Release(subject string) {
	c.mu.Lock()
	tr, ok := c.tasks[subject]
	if !ok {
		c.mu.Unlock()
		return
	}
	var settled func()
	if tr.task.Status.Active() {
		tr.token.Fire()
		settled = c.settleLocked(tr, Cancelled, ErrCancelled)
	}
	delete(c.tasks, subject)
	c.broadcastLocked(Task{SubjectID: subject, Status: Idle, UpdatedAt: c.now()})
	c.mu.Unlock()
	if settled != nil {
		settled()
	}
}

// Get returns the task for subject.
func (c *Controller) Get(subject string) (Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tr, ok := c.tasks[subject]
	if !ok {
		return Task{}, false
	}
	return tr.task, true
}

// Tasks returns every tracked task ordered by start time.
func (c *Controller) Tasks() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, 0, len(c.tasks))
	for _, tr := range c.tasks {
		out = append(out, tr.task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Subscribe delivers task changes. A receiver that falls behind loses the
// oldest pending update; Tasks is authoritative.
func (c *Controller) Subscribe() (<-chan Task, func()) {
	ch := make(chan Task, 32)
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Controller) finish(subject string, status Status, err error, abort bool) bool {
	c.mu.Lock()
	tr, ok := c.activeLocked(subject)
	if !ok {
		c.mu.Unlock()
		c.log.Debug("ignoring "+status.String(), zap.String("subject", subject), zap.Error(apperr.ErrStaleEvent))
		return false
	}
	if abort {
		tr.token.Fire()
	}
	settled := c.settleLocked(tr, status, err)
	c.mu.Unlock()
	if settled != nil {
		settled()
	}
	return true
}

func (c *Controller) activeLocked(subject string) (*tracked, bool) {
	tr, ok := c.tasks[subject]
	if !ok || !tr.task.Status.Active() {
		return nil, false
	}
	return tr, true
}

// settleLocked moves tr to a terminal status and releases its preview. The
// returned func runs the settle callback and must be called without c.mu.
func (c *Controller) settleLocked(tr *tracked, status Status, err error) func() {
	tr.task.Status = status
	tr.task.Err = err
	tr.task.UpdatedAt = c.now()
	if tr.task.Preview != "" {
		c.previews.Revoke(tr.task.Preview)
		tr.task.Preview = ""
	}
	c.broadcastLocked(tr.task)
	tr.token.release()

	fn := tr.onSettled
	tr.onSettled = nil
	if fn == nil {
		return nil
	}
	snap := tr.task
	return func() { fn(snap) }
}

func (c *Controller) broadcastLocked(t Task) {
	for _, ch := range c.subs {
		select {
		case ch <- t:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- t:
			default:
			}
		}
	}
}
