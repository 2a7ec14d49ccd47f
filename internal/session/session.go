// Package session tracks the multi-step admin conversations: which user is
// expected to type a username or send broadcast content next.
package session

import (
	"sync"
	"time"
)

// Kind is a conversation state.
type Kind int

const (
	Idle Kind = iota
	AwaitingAdminUsername
	AwaitingBroadcastContent
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case AwaitingAdminUsername:
		return "awaiting_admin_username"
	case AwaitingBroadcastContent:
		return "awaiting_broadcast_content"
	default:
		return "unknown"
	}
}

// Action is what an AwaitingAdminUsername state will do with the name.
type Action int

const (
	NoAction Action = iota
	AddAdmin
	RemoveAdmin
)

// State is one user's position in the conversation.
type State struct {
	Kind   Kind
	Action Action // only for AwaitingAdminUsername
}

type entry struct {
	state   State
	expires time.Time
}

// Store holds conversation states keyed by user id. States expire after
// the TTL and then read as Idle.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]entry
}

// NewStore creates a session store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]entry),
	}
}

// Begin moves userID into state, replacing any prior state. Beginning
// Idle is the same as Finish.
func (s *Store) Begin(userID int64, state State) {
	if state.Kind == Idle {
		s.Finish(userID)
		return
	}
	if state.Kind != AwaitingAdminUsername {
		state.Action = NoAction
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = entry{state: state, expires: s.now().Add(s.ttl)}
}

// Current returns userID's state, Idle when none or expired.
func (s *Store) Current(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return State{Kind: Idle}
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, userID)
		return State{Kind: Idle}
	}
	return e.state
}

// Take returns userID's state and resets it to Idle in one step, so a
// state can be consumed by exactly one message.
func (s *Store) Take(userID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	delete(s.entries, userID)
	if !ok || !s.now().Before(e.expires) {
		return State{Kind: Idle}
	}
	return e.state
}

// Finish returns userID to Idle.
func (s *Store) Finish(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

// Sweep drops expired states and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked, possibly expired, states.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
