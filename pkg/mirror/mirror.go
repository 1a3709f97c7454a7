// Package mirror implements a client-side optimistic cache. A mutation is
// applied to the local copy immediately and published as a flagged speculative
// state; the server response then either confirms it with ground truth or
// rolls the entry back to the exact prior state.
package mirror

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrUnknownEntity is returned when updating an id the store never saw.
	ErrUnknownEntity = errors.New("mirror: unknown entity")
	// ErrUpdateInFlight is returned when an update is attempted while another
	// one on the same entity is still awaiting its response. One optimistic
	// record per entity at a time.
	ErrUpdateInFlight = errors.New("mirror: update already in flight for entity")
)

// Entry is what observers see: either the last confirmed server state, or a
// speculative value clearly flagged as updating.
type Entry[E any] struct {
	Value    E
	Updating bool
}

// CloneFunc deep-copies an entity so snapshots are immune to later mutation.
type CloneFunc[E any] func(E) E

// ApplyFunc computes the speculative next state from the current one.
type ApplyFunc[E any] func(E) E

// SendFunc performs the server round trip. A nil result with a nil error
// means the server confirmed without returning a body.
type SendFunc[E any] func(ctx context.Context, optimistic E) (*E, error)

// Store holds shadow copies of server-owned entities, keyed by id.
type Store[E any] struct {
	mu       sync.RWMutex
	clone    CloneFunc[E]
	entries  map[string]Entry[E]
	inflight map[string]struct{}
}

// NewStore builds an empty store around the given clone function.
func NewStore[E any](clone CloneFunc[E]) *Store[E] {
	return &Store[E]{
		clone:    clone,
		entries:  make(map[string]Entry[E]),
		inflight: make(map[string]struct{}),
	}
}

// Put replaces an entry with confirmed server state.
func (s *Store[E]) Put(id string, value E) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = Entry[E]{Value: s.clone(value)}
}

// Get returns the current entry for an id.
func (s *Store[E]) Get(id string) (Entry[E], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return Entry[E]{}, false
	}
	return Entry[E]{Value: s.clone(entry.Value), Updating: entry.Updating}, true
}

// Drop discards a shadow copy; the next read must refetch from the server.
func (s *Store[E]) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len reports the number of mirrored entities.
func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Update runs one optimistic transaction: snapshot, publish the speculative
// state, send, then confirm or roll back. On failure the entry is restored to
// the snapshot verbatim and the error is returned for the caller to surface.
func (s *Store[E]) Update(ctx context.Context, id string, apply ApplyFunc[E], send SendFunc[E]) (E, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		var zero E
		return zero, ErrUnknownEntity
	}
	if _, busy := s.inflight[id]; busy {
		s.mu.Unlock()
		var zero E
		return zero, ErrUpdateInFlight
	}
	prev := s.clone(entry.Value)
	optimistic := apply(s.clone(entry.Value))
	s.entries[id] = Entry[E]{Value: optimistic, Updating: true}
	s.inflight[id] = struct{}{}
	s.mu.Unlock()

	confirmed, err := send(ctx, s.clone(optimistic))

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
	if err != nil {
		s.entries[id] = Entry[E]{Value: prev}
		var zero E
		return zero, err
	}
	if confirmed != nil {
		s.entries[id] = Entry[E]{Value: s.clone(*confirmed)}
		return s.clone(*confirmed), nil
	}
	s.entries[id] = Entry[E]{Value: optimistic}
	return s.clone(optimistic), nil
}
