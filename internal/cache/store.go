package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cultcreative/deck/internal/apperr"
)

const defaultFetchTimeout = 10 * time.Second

// Options configure revalidation for a key or key prefix.
type Options struct {
	RevalidateOnFocus     bool
	RevalidateOnReconnect bool
	DedupingInterval      time.Duration
	RefreshInterval       time.Duration // zero disables interval refresh
}

// DefaultOptions returns the policy applied to keys without an override.
func DefaultOptions() Options {
	return Options{
		RevalidateOnFocus:     true,
		RevalidateOnReconnect: true,
		DedupingInterval:      2 * time.Second,
	}
}

// Entry is a point-in-time view of one cached resource.
type Entry struct {
	Key          string
	Data         any
	HasData      bool
	IsValidating bool
	Err          error
	UpdatedAt    time.Time
	Failures     int // consecutive fetch failures
}

// IsOffline returns true when the resource has failed to load repeatedly.
func (e Entry) IsOffline() bool {
	return e.Failures >= 2
}

// Value extracts typed data from an entry.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Data.(T)
	return v, ok && e.HasData
}

// Fetcher loads the authoritative value for key.
type Fetcher func(ctx context.Context, key string) (any, error)

// PatchFunc computes the next value from the current one. It must not modify
// current in place and must not call back into the Store.
type PatchFunc func(current any) any

// Revision records the state a Mutate call replaced so it can be rolled back.
type Revision struct {
	Key     string
	Prev    any
	HadData bool
	Gen     uint64
}

// Config holds Store construction parameters.
type Config struct {
	Fetcher  Fetcher
	Defaults *Options // nil means DefaultOptions
	Timeout  time.Duration
	Logger   *zap.Logger
}

type entry struct {
	Entry
	gen       uint64 // bumped by every local write
	inflight  int
	fetchedAt time.Time
	touchedAt time.Time
}

// Store is a keyed cache of server resources with optimistic local writes.
type Store struct {
	ctx     context.Context
	fetch   Fetcher
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
	group   singleflight.Group

	mu        sync.Mutex
	defaults  Options
	overrides map[string]Options
	entries   map[string]*entry
	subs      map[string]map[uint64]chan Entry
	nextSub   uint64
}

// New builds a Store. Background fetches run under ctx.
func New(ctx context.Context, cfg Config) *Store {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if cfg.Defaults != nil {
		defaults = *cfg.Defaults
	}
	return &Store{
		ctx:       ctx,
		fetch:     cfg.Fetcher,
		timeout:   timeout,
		log:       logger.Named("cache"),
		now:       time.Now,
		defaults:  defaults,
		overrides: make(map[string]Options),
		entries:   make(map[string]*entry),
		subs:      make(map[string]map[uint64]chan Entry),
	}
}

// Key joins structured key parts, e.g. Key("submissions", user, campaign).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// SetOptions overrides the policy for key and every key below it
// (prefix "submissions" matches "submissions:u1:c1"). The longest prefix wins.
func (s *Store) SetOptions(prefix string, opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[prefix] = opts
}

// OptionsFor returns the effective policy for key.
func (s *Store) OptionsFor(key string) Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optionsLocked(key)
}

// Read returns the cached entry without blocking. A missing or stale entry
// starts a background fetch and is returned with IsValidating set.
func (s *Store) Read(key string) Entry {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.inflight > 0 || s.freshLocked(e) {
		snap := e.Entry
		s.mu.Unlock()
		return snap
	}
	e.IsValidating = true
	snap := e.Entry
	s.mu.Unlock()

	s.startFetch(key)
	return snap
}

// Load returns data for key, fetching it when the entry is missing or
// outside the deduping window. Concurrent callers share one request.
func (s *Store) Load(ctx context.Context, key string) (Entry, error) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	if e.inflight == 0 && s.freshLocked(e) {
		snap := e.Entry
		s.mu.Unlock()
		if snap.Err != nil {
			return snap, &apperr.FetchError{Key: key, Err: snap.Err}
		}
		return snap, nil
	}
	s.mu.Unlock()
	return s.wait(ctx, s.startFetch(key))
}

// Revalidate fetches key regardless of the deduping window. An in-flight
// fetch for the key is joined rather than duplicated.
func (s *Store) Revalidate(ctx context.Context, key string) (Entry, error) {
	return s.wait(ctx, s.startFetch(key))
}

// Mutate applies patch to the current value synchronously. A nil patch only
// revalidates. With revalidate set, a background fetch reconciles the entry
// with the server once the patch is visible.
func (s *Store) Mutate(key string, patch PatchFunc, revalidate bool) Revision {
	s.mu.Lock()
	e := s.ensureLocked(key)
	rev := Revision{Key: key, Prev: e.Data, HadData: e.HasData}
	if patch != nil {
		next := patch(e.Data)
		s.writeLocked(e, next, e.HasData || next != nil)
	}
	rev.Gen = e.gen
	s.mu.Unlock()

	if revalidate {
		s.startFetch(key)
	}
	return rev
}

// Set stores value for key as an optimistic write.
func (s *Store) Set(key string, value any, revalidate bool) Revision {
	return s.Mutate(key, func(any) any { return value }, revalidate)
}

// Rollback restores the value rev replaced when no later write touched the
// key. It reports whether the value was restored.
func (s *Store) Rollback(rev Revision, revalidate bool) bool {
	s.mu.Lock()
	restored := false
	if e, ok := s.entries[rev.Key]; ok && e.gen == rev.Gen {
		s.writeLocked(e, rev.Prev, rev.HadData)
		restored = true
	}
	s.mu.Unlock()

	if revalidate {
		s.startFetch(rev.Key)
	}
	return restored
}

// Focus revalidates keys with RevalidateOnFocus. It returns the number of
// fetches started.
func (s *Store) Focus() int {
	return s.trigger(func(o Options) bool { return o.RevalidateOnFocus })
}

// Reconnect revalidates keys with RevalidateOnReconnect.
func (s *Store) Reconnect() int {
	return s.trigger(func(o Options) bool { return o.RevalidateOnReconnect })
}

// RefreshDue revalidates every key whose RefreshInterval has elapsed and
// waits for the results. It returns how many keys were refreshed.
func (s *Store) RefreshDue(ctx context.Context) (int, error) {
	now := s.now()
	s.mu.Lock()
	var due []string
	for key, e := range s.entries {
		opts := s.optionsLocked(key)
		if opts.RefreshInterval <= 0 || e.inflight > 0 {
			continue
		}
		if now.Sub(lastActivity(e)) >= opts.RefreshInterval {
			due = append(due, key)
		}
	}
	s.mu.Unlock()

	sort.Strings(due)
	var firstErr error
	for _, key := range due {
		if _, err := s.Revalidate(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(due), firstErr
}

// Subscribe returns a channel receiving every change to key. Slow receivers
// observe only the latest entry. The current entry, if any, is delivered
// immediately. Call cancel to stop receiving; it closes the channel.
func (s *Store) Subscribe(key string) (<-chan Entry, func()) {
	ch := make(chan Entry, 1)

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	if s.subs[key] == nil {
		s.subs[key] = make(map[uint64]chan Entry)
	}
	s.subs[key][id] = ch
	if e, ok := s.entries[key]; ok {
		ch <- e.Entry
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[key], id)
			if len(s.subs[key]) == 0 {
				delete(s.subs, key)
			}
			close(ch)
		})
	}
}

// Reset drops every entry, e.g. on logout. In-flight fetches are discarded
// when they land. Subscribers receive an empty entry.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		s.group.Forget(key)
	}
	s.entries = make(map[string]*entry)
	for key := range s.subs {
		s.broadcastLocked(key, Entry{Key: key})
	}
}

// Keys returns the cached keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Store) trigger(allow func(Options) bool) int {
	s.mu.Lock()
	var keys []string
	for key, e := range s.entries {
		if !allow(s.optionsLocked(key)) || e.inflight > 0 || s.freshLocked(e) {
			continue
		}
		keys = append(keys, key)
	}
	s.mu.Unlock()

	for _, key := range keys {
		s.startFetch(key)
	}
	return len(keys)
}

func (s *Store) startFetch(key string) <-chan singleflight.Result {
	return s.group.DoChan(key, func() (any, error) {
		return s.runFetch(key)
	})
}

func (s *Store) wait(ctx context.Context, ch <-chan singleflight.Result) (Entry, error) {
	select {
	case <-ctx.Done():
		return Entry{}, ctx.Err()
	case res := <-ch:
		snap, _ := res.Val.(Entry)
		return snap, res.Err
	}
}

func (s *Store) runFetch(key string) (any, error) {
	s.mu.Lock()
	e := s.ensureLocked(key)
	gen := e.gen
	e.inflight++
	e.fetchedAt = s.now()
	e.IsValidating = true
	s.broadcastLocked(key, e.Entry)
	s.mu.Unlock()

	var (
		data any
		err  error
	)
	if s.fetch == nil {
		err = errNoFetcher
	} else {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		data, err = s.fetch(ctx, key)
		cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e.inflight--
	e.IsValidating = e.inflight > 0

	if s.entries[key] != e {
		// Reset while in flight.
		return Entry{Key: key}, nil
	}
	if e.gen != gen {
		// A local write landed after the request went out; the write wins.
		s.log.Debug("discarding superseded fetch", zap.String("key", key))
		s.broadcastLocked(key, e.Entry)
		return e.Entry, nil
	}
	e.UpdatedAt = s.now()
	if err != nil {
		e.Err = err
		e.Failures++
		s.log.Warn("fetch failed", zap.String("key", key), zap.Int("failures", e.Failures), zap.Error(err))
		s.broadcastLocked(key, e.Entry)
		return e.Entry, &apperr.FetchError{Key: key, Err: err}
	}
	e.Data = data
	e.HasData = true
	e.Err = nil
	e.Failures = 0
	s.broadcastLocked(key, e.Entry)
	return e.Entry, nil
}

func (s *Store) writeLocked(e *entry, data any, hasData bool) {
	now := s.now()
	e.Data = data
	e.HasData = hasData
	e.gen++
	e.touchedAt = now
	e.UpdatedAt = now
	// Later callers must not join a request issued before this write.
	s.group.Forget(e.Key)
	s.broadcastLocked(e.Key, e.Entry)
}

func (s *Store) ensureLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{Entry: Entry{Key: key}}
		s.entries[key] = e
	}
	return e
}

// freshLocked reports whether e is inside its deduping window. Failed fetches
// count, so an erroring key is retried at most once per window.
func (s *Store) freshLocked(e *entry) bool {
	if e.fetchedAt.IsZero() && !e.HasData {
		return false
	}
	last := lastActivity(e)
	if last.IsZero() {
		return false
	}
	return s.now().Sub(last) < s.optionsLocked(e.Key).DedupingInterval
}

func (s *Store) optionsLocked(key string) Options {
	best, bestLen := s.defaults, -1
	for prefix, opts := range s.overrides {
		if key != prefix && !strings.HasPrefix(key, prefix+":") {
			continue
		}
		if len(prefix) > bestLen {
			best, bestLen = opts, len(prefix)
		}
	}
	return best
}

func (s *Store) broadcastLocked(key string, snap Entry) {
	for _, ch := range s.subs[key] {
		select {
		case ch <- snap:
		default:
			// Drop the stale value so the receiver sees the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func lastActivity(e *entry) time.Time {
	if e.touchedAt.After(e.fetchedAt) {
		return e.touchedAt
	}
	return e.fetchedAt
}
