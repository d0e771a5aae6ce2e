// Package ruleset manages the active rule configuration snapshot.
//
// The snapshot is immutable after load. Reload builds a complete new
// snapshot, validates it, compiles its custom rules, and only then
// swaps the pointer atomically, so an in-flight screening can never
// observe a half-updated rule set.
package ruleset

import (
	"fmt"
	"sync/atomic"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/patterns"
)

// Snapshot pairs a validated ruleset with its compiled custom rules.
type Snapshot struct {
	Rules  *domain.Ruleset
	Custom *patterns.CustomRuleSet
}

// Store holds the active snapshot behind an atomic pointer.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore builds and installs the initial snapshot. The ruleset is
// owned by the store after the call and must not be mutated.
func NewStore(rs *domain.Ruleset) (*Store, error) {
	store := &Store{}
	if err := store.Swap(rs); err != nil {
		return nil, err
	}
	return store, nil
}

// Swap validates and installs a new snapshot. On any error the previous
// snapshot stays active untouched.
func (s *Store) Swap(rs *domain.Ruleset) error {
	snap, err := build(rs)
	if err != nil {
		return err
	}
	s.current.Store(snap)
	return nil
}

// Snapshot returns the active snapshot. Callers must read it once per
// evaluation and not hold it across reloads.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Version returns the active ruleset version.
func (s *Store) Version() string {
	if snap := s.current.Load(); snap != nil {
		return snap.Rules.Version
	}
	return ""
}

func build(rs *domain.Ruleset) (*Snapshot, error) {
	if rs == nil {
		return nil, fmt.Errorf("%w: ruleset is required", domain.ErrConfiguration)
	}

	rs.ApplyDefaults()
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	custom, err := patterns.CompileCustomRules(rs.CustomRules)
	if err != nil {
		return nil, err
	}

	return &Snapshot{Rules: rs, Custom: custom}, nil
}
