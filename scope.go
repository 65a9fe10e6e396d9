package ormkit

import (
	"context"
	"sync"
)

// EagerLoadScope is the thread-local-equivalent spec §5 describes: a
// per-request/per-goroutine set of relation names queued for eager
// loading, carried on a context.Context rather than a goroutine-local
// (Go has no such thing) so it composes correctly across concurrent
// requests and cancels with its context.
type EagerLoadScope struct {
	mu    sync.Mutex
	names map[string]struct{}
}

type eagerLoadScopeKey struct{}

// WithEagerLoadScope attaches a fresh, empty EagerLoadScope to ctx,
// returning the derived context and the scope for direct use by the
// caller that opened it.
func WithEagerLoadScope(ctx context.Context) (context.Context, *EagerLoadScope) {
	scope := &EagerLoadScope{names: make(map[string]struct{})}
	return context.WithValue(ctx, eagerLoadScopeKey{}, scope), scope
}

// EagerLoadScopeFrom returns the scope attached to ctx, or nil if none was
// ever attached.
func EagerLoadScopeFrom(ctx context.Context) *EagerLoadScope {
	scope, _ := ctx.Value(eagerLoadScopeKey{}).(*EagerLoadScope)
	return scope
}

// With adds relation names to the scope, spec §5's with(*names) call.
func (s *EagerLoadScope) With(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.names[n] = struct{}{}
	}
}

// Names returns the relation names currently queued, in no particular
// order.
func (s *EagerLoadScope) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	return out
}

// Has reports whether a relation name is queued for eager loading.
func (s *EagerLoadScope) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.names[name]
	return ok
}

// Clear empties the scope, used after the queued relations have been
// loaded once so a subsequent query on the same context starts fresh.
func (s *EagerLoadScope) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = make(map[string]struct{})
}
