// Package notify keeps the transient, dismissable notices shown to the user.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cultcreative/deck/internal/apperr"
)

const defaultTTL = 6 * time.Second

// Level classifies a notice.
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Notice is one transient message.
type Notice struct {
	ID      string
	Level   Level
	Message string
	At      time.Time
	Expires time.Time
}

// Center stores active notices and fans new ones out to subscribers.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	notices []Notice
	subs    map[int]chan Notice
	nextSub int
}

// NewCenter returns a Center whose notices expire after ttl.
func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Center{ttl: ttl, now: time.Now, subs: make(map[int]chan Notice)}
}

// Push records a notice and returns it.
func (c *Center) Push(level Level, message string) Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := Notice{
		ID:      uuid.NewString(),
		Level:   level,
		Message: message,
		At:      now,
		Expires: now.Add(c.ttl),
	}
	c.notices = append(c.notices, n)
	for _, ch := range c.subs {
		select {
		case ch <- n:
		default:
		}
	}
	return n
}

// Infof pushes an informational notice.
func (c *Center) Infof(format string, args ...any) Notice {
	return c.Push(Info, fmt.Sprintf(format, args...))
}

// Error pushes an error notice rendered for the user. nil is ignored.
func (c *Center) Error(err error) {
	if err == nil {
		return
	}
	c.Push(Error, apperr.Message(err))
}

// Dismiss removes a notice before it expires.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return true
		}
	}
	return false
}

// Active returns unexpired notices, oldest first, pruning the rest.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.notices[:0]
	for _, n := range c.notices {
		if now.Before(n.Expires) {
			kept = append(kept, n)
		}
	}
	c.notices = kept
	if len(kept) == 0 {
		return nil
	}
	out := make([]Notice, len(kept))
	copy(out, kept)
	return out
}

// Subscribe delivers new notices. Notices are dropped for receivers that
// fall more than 16 behind.
func (c *Center) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 16)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			close(ch)
			c.mu.Unlock()
		})
	}
}
