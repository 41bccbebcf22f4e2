package inbox

import (
	"testing"

	"github.com/cultcreative/deck/internal/realtime"
)

func TestCounter_SetAndSubscribe(t *testing.T) {
	c := NewCounter()
	if _, ok := c.Get(); ok {
		t.Fatal("new counter reports a count")
	}

	ch, cancel := c.Subscribe()
	defer cancel()

	c.HandleMessageCount(realtime.MessageCount{Count: 3})
	c.Set(4)
	c.Set(-2)

	// Coalesced: only the latest value is pending.
	if got := <-ch; got != 0 {
		t.Fatalf("latest = %d, want 0", got)
	}
	if got, ok := c.Get(); !ok || got != 0 {
		t.Fatalf("Get = %d, %v", got, ok)
	}
}

func TestCounter_SubscribeReplaysCurrent(t *testing.T) {
	c := NewCounter()
	c.Set(7)
	ch, cancel := c.Subscribe()
	if got := <-ch; got != 7 {
		t.Fatalf("replayed %d, want 7", got)
	}
	cancel()
	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel open after cancel")
	}

	c.Reset()
	if _, ok := c.Get(); ok {
		t.Fatal("count known after Reset")
	}
}
