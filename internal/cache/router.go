package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errNoFetcher = errors.New("no fetcher configured")

// ErrNoRoute is returned by Router.Fetch for keys no fetcher handles.
var ErrNoRoute = errors.New("no fetcher for key")

// Router dispatches cache keys to fetchers by key prefix.
type Router struct {
	routes map[string]Fetcher
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]Fetcher)}
}

// Handle registers f for prefix and every key below it.
func (r *Router) Handle(prefix string, f Fetcher) {
	r.routes[prefix] = f
}

// Fetch implements Fetcher using the longest matching prefix.
func (r *Router) Fetch(ctx context.Context, key string) (any, error) {
	var (
		best    Fetcher
		bestLen = -1
	)
	for prefix, f := range r.routes {
		if key != prefix && !strings.HasPrefix(key, prefix+":") {
			continue
		}
		if len(prefix) > bestLen {
			best, bestLen = f, len(prefix)
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRoute, key)
	}
	return best(ctx, key)
}
