package cond

import "sync"

// Event is emitted on Store.Events() whenever Set/Clear/Flux actually
// changes a key's value, so the event loop can mark referencing
// services dirty and schedule a step_all without the store knowing
// anything about the registry.
type Event struct {
	Key   string
	State State
}

// Store is the in-memory, authoritative condition table. The zero
// value is not usable; construct with New.
type Store struct {
	mu     sync.RWMutex
	values map[string]State
	root   string // filesystem mirror root, empty disables disk sync
	events chan Event
}

// New creates a Store whose disk mirror lives under root. If root is
// empty, disk sync is skipped (useful in tests and for embedding).
func New(root string) *Store {
	return &Store{
		values: make(map[string]State),
		root:   root,
		events: make(chan Event, 64),
	}
}

// Events returns the channel of condition changes for the event loop
// to select on. Never closed during normal operation.
func (s *Store) Events() <-chan Event { return s.events }

// Get returns the key's current value; unknown keys are Off, per
// the condition engine's closed-world default.
func (s *Store) Get(key string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

// Set asserts key ON. Returns true if the value changed.
func (s *Store) Set(key string) bool {
	return s.transition(key, On)
}

// Clear asserts key OFF. Returns true if the value changed.
func (s *Store) Clear(key string) bool {
	return s.transition(key, Off)
}

// Flux marks key as transitioning (neither reliably ON nor OFF, e.g.
// mid-reload). Returns true if the value changed.
func (s *Store) Flux(key string) bool {
	return s.transition(key, Flux)
}

func (s *Store) transition(key string, next State) bool {
	s.mu.Lock()
	prev := s.values[key] // unknown keys read as Off
	changed := prev != next
	if changed {
		s.values[key] = next
	}
	s.mu.Unlock()

	if !changed {
		return false
	}
	if s.root != "" {
		syncDisk(s.root, key, next)
	}
	s.events <- Event{Key: key, State: next}
	return true
}

// Snapshot returns a copy of every known key and its value, in no
// particular order, for diagnostics.
func (s *Store) Snapshot() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Load populates the store from its disk mirror, for supervisors that
// want condition state to survive a restart. Safe to call once at
// startup before the event loop begins consuming Events().
func (s *Store) Load() error {
	if s.root == "" {
		return nil
	}
	values, err := loadDisk(s.root)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}
