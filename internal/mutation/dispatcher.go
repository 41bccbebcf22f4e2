// Package mutation applies domain writes against the remote cache: an
// optimistic patch first, then the network request, then reconciliation.
package mutation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
)

const defaultSendTimeout = 15 * time.Second

// Strategy selects how a successful write is reconciled.
type Strategy int

const (
	// Revalidate refetches the key after success, replacing the optimistic
	// guess with server state.
	Revalidate Strategy = iota
	// Merge keeps the optimistic patch. When Mutation.Merge is set the
	// response is folded in locally without a refetch.
	Merge
)

func (s Strategy) String() string {
	if s == Merge {
		return "merge"
	}
	return "revalidate"
}

// Mutation describes one domain write.
type Mutation struct {
	Name       string
	Key        string
	Optimistic cache.PatchFunc // nil skips the optimistic step
	Strategy   Strategy
	// KeepOnError leaves the optimistic patch in place on failure. The key
	// is still revalidated.
	KeepOnError bool
	Send        func(ctx context.Context) (any, error)
	Merge       func(current, response any) any
}

// Cache is the subset of *cache.Store the dispatcher writes to.
type Cache interface {
	Mutate(key string, patch cache.PatchFunc, revalidate bool) cache.Revision
	Rollback(rev cache.Revision, revalidate bool) bool
}

// Notifier surfaces failures to the user.
type Notifier interface {
	Error(err error)
}

// Dispatcher runs mutations.
type Dispatcher struct {
	cache    Cache
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger
}

// NewDispatcher builds a Dispatcher. notifier and logger may be nil.
func NewDispatcher(c Cache, notifier Notifier, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{cache: c, notifier: notifier, timeout: timeout, log: logger.Named("mutation")}
}

// Dispatch runs m. The optimistic patch is visible before Send is called.
// On failure the patch is rolled back (unless KeepOnError) and the key is
// revalidated; the returned error is a *apperr.MutationError.
func (d *Dispatcher) Dispatch(ctx context.Context, m Mutation) (any, error) {
	if m.Send == nil {
		return nil, errors.New("mutation has no request")
	}
	log := d.log.With(zap.String("op", m.Name), zap.String("key", m.Key), zap.Stringer("strategy", m.Strategy))

	var (
		rev     cache.Revision
		patched bool
	)
	if m.Optimistic != nil && m.Key != "" {
		rev = d.cache.Mutate(m.Key, m.Optimistic, false)
		patched = true
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	resp, err := m.Send(sendCtx)
	cancel()

	if err != nil {
		mErr := &apperr.MutationError{Op: m.Name, Key: m.Key, Err: err}
		log.Warn("mutation failed", zap.Error(err))
		if m.Key != "" {
			switch {
			case patched && !m.KeepOnError:
				d.cache.Rollback(rev, true)
			default:
				d.cache.Mutate(m.Key, nil, true)
			}
		}
		if d.notifier != nil {
			d.notifier.Error(mErr)
		}
		return nil, mErr
	}

	if m.Key != "" {
		switch {
		case m.Strategy == Revalidate:
			d.cache.Mutate(m.Key, nil, true)
		case m.Merge != nil:
			d.cache.Mutate(m.Key, func(cur any) any { return m.Merge(cur, resp) }, false)
		}
	}
	log.Debug("mutation applied")
	return resp, nil
}
