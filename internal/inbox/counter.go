// Package inbox tracks the unread message count pushed over the socket.
package inbox

import (
	"sync"

	"github.com/cultcreative/deck/internal/realtime"
)

// Counter holds the latest unread count.
type Counter struct {
	mu      sync.Mutex
	count   int
	known   bool
	subs    map[int]chan int
	nextSub int
}

// NewCounter returns a Counter with no count yet.
func NewCounter() *Counter {
	return &Counter{subs: make(map[int]chan int)}
}

// Set records count. Negative values are treated as zero.
func (c *Counter) Set(count int) {
	if count < 0 {
		count = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known && c.count == count {
		return
	}
	c.count, c.known = count, true
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- count
	}
}

// Get returns the count and whether one has been received.
func (c *Counter) Get() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.known
}

// HandleMessageCount applies a messageCount event.
func (c *Counter) HandleMessageCount(ev realtime.MessageCount) {
	c.Set(ev.Count)
}

// Reset forgets the count, e.g. on logout.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count, c.known = 0, false
}

// Subscribe delivers the latest count whenever it changes.
func (c *Counter) Subscribe() (<-chan int, func()) {
	ch := make(chan int, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	if c.known {
		ch <- c.count
	}
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
