package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSession_LoginReusesAndSwapsBridges(t *testing.T) {
	fs := newFakeSocket(t)
	resets := 0
	wired := 0
	s := NewSession(
		func(userID string) *Bridge { return NewBridge(Config{URL: fs.url(), UserID: userID}) },
		func(b *Bridge) {
			wired++
			b.On(EventMessageCount, func(json.RawMessage) {})
		},
		func() { resets++ },
		nil,
	)
	t.Cleanup(s.Logout)

	ctx := context.Background()
	first, err := s.Login(ctx, "u1")
	if err != nil {
		t.Fatalf("Login u1: %v", err)
	}
	expectRegister(t, fs, "u1")

	again, err := s.Login(ctx, " u1 ")
	if err != nil {
		t.Fatalf("Login u1 again: %v", err)
	}
	if again != first || wired != 1 {
		t.Fatalf("same-user login built a new bridge (wired=%d)", wired)
	}
	if resets != 0 {
		t.Fatalf("same-user login reset user data (resets=%d)", resets)
	}

	second, err := s.Login(ctx, "u2")
	if err != nil {
		t.Fatalf("Login u2: %v", err)
	}
	if second == first {
		t.Fatal("login as another user reused the bridge")
	}
	if resets != 1 {
		t.Fatalf("switching users: resets = %d, want 1", resets)
	}
	if n := first.Handlers(EventMessageCount); n != 0 {
		t.Fatalf("old bridge still has %d handlers", n)
	}
	if first.Connected() {
		t.Fatal("old bridge still connected")
	}

	// Drain frames until the new user registers.
	for {
		f := fs.nextFrame(t)
		if f.Type != EventRegister {
			continue
		}
		var reg Register
		_ = json.Unmarshal(f.Payload, &reg)
		if reg.UserID == "u2" {
			break
		}
	}

	s.Logout()
	if s.Bridge() != nil {
		t.Fatal("bridge still set after Logout")
	}
	if resets != 2 {
		t.Fatalf("resets = %d, want 2", resets)
	}
	if err := s.Emit(EventCancelProcessing, CancelProcessing{SubjectID: "x"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Emit after Logout = %v, want ErrNotConnected", err)
	}
}

func TestSession_LoginRequiresUser(t *testing.T) {
	s := NewSession(func(string) *Bridge { return nil }, nil, nil, nil)
	if _, err := s.Login(context.Background(), "  "); err == nil {
		t.Fatal("Login with blank user returned nil error")
	}
}
