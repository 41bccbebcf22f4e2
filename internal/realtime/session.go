package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Session keeps exactly one bridge, bound to the signed-in user.
type Session struct {
	newBridge func(userID string) *Bridge
	wire      func(*Bridge)
	reset     func()
	log       *zap.Logger

	mu     sync.Mutex
	bridge *Bridge
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds a Session. newBridge creates the bridge for a user, wire
// registers the application's handlers on it and reset clears user data on
// logout and on a switch to another user. wire and reset may be nil.
func NewSession(newBridge func(userID string) *Bridge, wire func(*Bridge), reset func(), logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		newBridge: newBridge,
		wire:      wire,
		reset:     reset,
		log:       logger.Named("session"),
	}
}

// Login connects as userID. A bridge for the same user is reused. A bridge
// for another user is torn down and that user's data is reset before the new
// bridge starts, so no event or cached value crosses users.
func (s *Session) Login(ctx context.Context, userID string) (*Bridge, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("login: user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bridge != nil && s.bridge.UserID() == userID {
		return s.bridge, nil
	}
	if s.bridge != nil {
		s.teardownLocked()
		if s.reset != nil {
			s.reset()
		}
	}

	b := s.newBridge(userID)
	if s.wire != nil {
		s.wire(b)
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Run(runCtx); err != nil {
			s.log.Warn("realtime bridge stopped", zap.Error(err))
		}
	}()
	s.bridge, s.cancel, s.done = b, cancel, done
	s.log.Info("logged in", zap.String("user", userID))
	return b, nil
}

// Logout disconnects and clears cached user data.
func (s *Session) Logout() {
	s.mu.Lock()
	s.teardownLocked()
	s.mu.Unlock()
	if s.reset != nil {
		s.reset()
	}
}

// Bridge returns the active bridge, or nil when signed out.
func (s *Session) Bridge() *Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}

// Emit sends through the active bridge.
func (s *Session) Emit(event string, payload any) error {
	b := s.Bridge()
	if b == nil {
		return ErrNotConnected
	}
	return b.Emit(event, payload)
}

// CancelProcessing asks the server to stop work for an upload subject.
func (s *Session) CancelProcessing(subjectID string) error {
	return s.Emit(EventCancelProcessing, CancelProcessing{SubjectID: subjectID})
}

func (s *Session) teardownLocked() {
	if s.bridge == nil {
		return
	}
	user := s.bridge.UserID()
	_ = s.bridge.Close()
	s.cancel()
	<-s.done
	s.bridge, s.cancel, s.done = nil, nil, nil
	s.log.Info("session closed", zap.String("user", user))
}
