package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/cultcreative/deck/internal/apperr"
)

func TestCenter_ExpiresAndDismisses(t *testing.T) {
	c := NewCenter(time.Minute)
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return clock }

	first := c.Infof("saved %s", "board")
	second := c.Push(Warning, "slow network")

	if got := c.Active(); len(got) != 2 || got[0].Message != "saved board" {
		t.Fatalf("Active() = %+v, want two notices", got)
	}
	if !c.Dismiss(first.ID) {
		t.Fatal("Dismiss() = false, want true")
	}
	if c.Dismiss(first.ID) {
		t.Fatal("second Dismiss() = true, want false")
	}

	clock = clock.Add(2 * time.Minute)
	if got := c.Active(); got != nil {
		t.Fatalf("Active() after expiry = %+v, want none (second was %s)", got, second.ID)
	}
}

func TestCenter_ErrorRendersTypedErrors(t *testing.T) {
	c := NewCenter(0)
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Error(nil)
	c.Error(&apperr.MutationError{Op: "delete task", Err: errors.New("503")})

	select {
	case n := <-ch:
		if n.Level != Error || n.Message != "delete task failed: 503" {
			t.Fatalf("notice = %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("no notice delivered")
	}
	if got := len(c.Active()); got != 1 {
		t.Fatalf("active notices = %d, want 1", got)
	}
}
