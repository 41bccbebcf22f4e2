package upload

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/localstate"
)

const previewsKey = "upload.previews"

// Previews issues local preview handles ("blob:" URLs) for files being
// uploaded. Live handles are mirrored to local state so handles left behind
// by a crashed run can be reclaimed on the next start.
type Previews struct {
	mu      sync.Mutex
	live    map[string]string // handle -> subject
	state   *localstate.Store
	log     *zap.Logger
	revoked int
}

// NewPreviews builds a registry persisted in state. state may be nil.
func NewPreviews(state *localstate.Store, logger *zap.Logger) *Previews {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Previews{
		live:  make(map[string]string),
		state: state,
		log:   logger.Named("previews"),
	}
}

// Create issues a handle for subject.
func (p *Previews) Create(subject string) string {
	handle := "blob:deck/" + uuid.NewString()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live[handle] = subject
	p.persistLocked()
	return handle
}

// Revoke releases handle. It reports whether the handle was live.
func (p *Previews) Revoke(handle string) bool {
	if handle == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.live[handle]; !ok {
		return false
	}
	delete(p.live, handle)
	p.revoked++
	p.persistLocked()
	return true
}

// Live returns the outstanding handles in sorted order.
func (p *Previews) Live() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.live))
	for h := range p.live {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Revoked returns how many handles have been released.
func (p *Previews) Revoked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revoked
}

// Reclaim releases handles recorded by a previous run and returns how many
// there were.
func (p *Previews) Reclaim() int {
	var stale map[string]string
	if !p.state.Get(previewsKey, &stale) || len(stale) == 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for handle, subject := range stale {
		if _, ours := p.live[handle]; ours {
			continue
		}
		p.log.Info("reclaimed preview from previous run", zap.String("subject", subject))
		n++
	}
	p.revoked += n
	p.persistLocked()
	return n
}

func (p *Previews) persistLocked() {
	if len(p.live) == 0 {
		p.state.Delete(previewsKey)
		return
	}
	p.state.Set(previewsKey, p.live)
}
