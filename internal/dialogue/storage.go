package dialogue

import (
	"sync"

	"deafbot/internal/domain"
	"deafbot/internal/transport"
)

// EditSession remembers the two messages of an open edit menu: the rendered
// profile and the anchor message carrying the field buttons.
type EditSession struct {
	Profile transport.MessageRef
	Anchor  transport.MessageRef
}

type Storage struct {
	mu       sync.Mutex
	states   map[domain.UserID]State
	sessions map[domain.UserID]EditSession
	locks    map[domain.UserID]*userLock
}

// userLock is dropped from the map once no event holds or awaits it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewStorage() *Storage {
	return &Storage{
		states:   make(map[domain.UserID]State),
		sessions: make(map[domain.UserID]EditSession),
		locks:    make(map[domain.UserID]*userLock),
	}
}

// Get returns Idle for identities that have no stored state.
func (s *Storage) Get(id domain.UserID) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.states[id]; ok {
		return st
	}
	return Idle{}
}

func (s *Storage) Update(id domain.UserID, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, idle := st.(Idle); idle {
		delete(s.states, id)
		return
	}
	s.states[id] = st
}

func (s *Storage) Reset(id domain.UserID) {
	s.Update(id, Idle{})
}

func (s *Storage) EditSession(id domain.UserID) (EditSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	es, ok := s.sessions[id]
	return es, ok
}

func (s *Storage) SetEditSession(id domain.UserID, es EditSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = es
}

func (s *Storage) ClearEditSession(id domain.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Lock serializes event handling for one identity and returns the unlock
// function. Different identities never block each other.
func (s *Storage) Lock(id domain.UserID) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &userLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
	}
}
