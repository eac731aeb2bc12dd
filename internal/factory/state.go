// Package factory implements the implementation registry and the
// deterministic deployment factory. Factory state lives in a State value
// kept separate from the Factory logic attached to it, so the logic can be
// swapped in place while registry contents and consumed salts survive.
package factory

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/BunsDev/shareconomy-nft-factory/internal/asset"
	"github.com/BunsDev/shareconomy-nft-factory/internal/domain"
)

// saltKey is the uniqueness key for deployments: a (kind, salt) pair is
// consumed at most once, permanently.
type saltKey struct {
	kind domain.Kind
	salt uint64
}

// State is the durable factory state: the registry of active templates per
// kind, the consumed-salt set, the administrator identity, and the logic
// version counter. It carries no behavior beyond locked accessors; all
// operation semantics live in Factory.
type State struct {
	mu      sync.RWMutex
	owner   common.Address
	version uint64
	impls   map[domain.Kind]asset.Template
	salts   map[saltKey]bool
}

// NewState creates factory state owned by the given administrator, at
// logic version zero. Attaching a Factory bumps the version to one.
func NewState(owner common.Address) *State {
	return &State{
		owner: owner,
		impls: make(map[domain.Kind]asset.Template),
		salts: make(map[saltKey]bool),
	}
}

// Owner returns the current administrator identity.
func (s *State) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// Version returns the monotonic logic version counter.
func (s *State) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// bumpVersion increments the logic version on each attach.
func (s *State) bumpVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version
}

// implementation returns the active template for kind.
func (s *State) implementation(kind domain.Kind) (asset.Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.impls[kind]
	return t, ok
}

// setImplementation overwrites the registry entry for kind (latest wins).
func (s *State) setImplementation(t asset.Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.impls[t.Kind] = t
}

// setOwner replaces the administrator identity.
func (s *State) setOwner(owner common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
}

// saltUsed reports whether the (kind, salt) pair has been consumed.
func (s *State) saltUsed(kind domain.Kind, salt uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.salts[saltKey{kind, salt}]
}

// consumeSalt marks the (kind, salt) pair as used forever.
func (s *State) consumeSalt(kind domain.Kind, salt uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salts[saltKey{kind, salt}] = true
}
