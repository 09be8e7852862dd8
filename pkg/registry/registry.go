// Package registry describes where inference models are served. The
// on-chain implementation lives in package secret; Static serves fixed lists
// for tests and private deployments.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Registry lists the models known to the network and the URLs serving them.
type Registry interface {
	// Models returns all registered model names.
	Models(ctx context.Context) ([]string, error)
	// URLs returns the inference URLs serving model, or every URL when model
	// is empty.
	URLs(ctx context.Context, model string) ([]string, error)
}

// Static is an in-memory Registry. The zero value is empty and ready to use.
type Static struct {
	mu     sync.RWMutex
	order  []string
	byName map[string][]string
}

// NewStatic returns a Static registry holding the given model to URL
// mapping. Models are listed in name order.
func NewStatic(urls map[string][]string) *Static {
	s := &Static{}
	names := make([]string, 0, len(urls))
	for name := range urls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.Add(name, urls[name]...)
	}
	return s
}

// Add registers model with the given URLs, appending to any URLs it already has.
func (s *Static) Add(model string, urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName == nil {
		s.byName = make(map[string][]string)
	}
	if _, ok := s.byName[model]; !ok {
		s.order = append(s.order, model)
	}
	s.byName[model] = append(s.byName[model], urls...)
}

// Models implements Registry.
func (s *Static) Models(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

// URLs implements Registry. An unknown model yields an empty list.
func (s *Static) URLs(_ context.Context, model string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if model != "" {
		return append([]string(nil), s.byName[model]...), nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, name := range s.order {
		for _, u := range s.byName[name] {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out, nil
}

var _ Registry = (*Static)(nil)
