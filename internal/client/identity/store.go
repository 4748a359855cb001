// Package identity holds the agent's in-memory user identity record and
// its lifecycle state. The store is the single writer boundary: flows read
// a snapshot, compute, and commit a replacement together with the
// lifecycle move they claim to have made.
package identity

import (
	"fmt"
	"sync"

	"github.com/portalkeeper/portalkeeper/internal/models"
)

// Snapshot is a consistent read of the store. Version increments on every
// commit so pollers can cheaply detect change.
type Snapshot struct {
	User    models.UserIdentity
	State   models.Lifecycle
	Version uint64
}

// Store хранит текущую идентичность и lifecycle состояние
type Store struct {
	user    models.UserIdentity
	state   models.Lifecycle
	version uint64
	mu      sync.RWMutex
}

// New создает пустой store в состоянии anonymous
func New() *Store {
	return &Store{state: models.StateAnonymous}
}

// Current returns a snapshot of the identity and lifecycle state.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{User: s.user, State: s.state, Version: s.version}
}

// Commit replaces the identity record and performs the lifecycle move in
// one step. An invalid move leaves the store untouched.
func (s *Store) Commit(user models.UserIdentity, to models.Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := models.Transition(s.state, to)
	if err != nil {
		return fmt.Errorf("identity commit rejected: %w", err)
	}

	s.user = user
	s.state = next
	s.version++
	return nil
}

// Reset wipes the identity and returns the store to anonymous through the
// logged-out state. Used on logout and on failed revalidation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = models.UserIdentity{}
	// через logged_out, чтобы переход оставался валидным из любого состояния
	if next, err := models.Transition(s.state, models.StateLoggedOut); err == nil {
		s.state = next
	}
	if next, err := models.Transition(s.state, models.StateAnonymous); err == nil {
		s.state = next
	}
	s.version++
}
