package navigation

import (
	"fmt"
	"sync"

	"github.com/harun/drawerq/pkg/drawer"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const scopeIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Listener receives scope lifecycle events.
type Listener = drawer.ScopeListener

// Scope is a mounted route instance.
type Scope struct {
	ID    string `json:"id"`
	Route string `json:"route"`
}

type listenerEntry struct {
	id uint64
	l  Listener
}

// Stack is an ordered stack of mounted routes.
type Stack struct {
	mu        sync.Mutex
	scopes    []Scope
	listeners []listenerEntry
	nextID    uint64
	logger    zerolog.Logger
	newID     func(route string) string

	// events fire outside mu so listeners may inspect the stack
	emitMu sync.Mutex
}

// NewStack creates an empty stack.
func NewStack(logger zerolog.Logger) *Stack {
	return &Stack{
		logger: logger.With().Str("component", "navigation").Logger(),
		newID:  newScopeID,
	}
}

func newScopeID(route string) string {
	id, err := gonanoid.Generate(scopeIDAlphabet, 8)
	if err != nil {
		// Generate only fails on an invalid alphabet or size.
		panic(fmt.Sprintf("navigation: scope id: %v", err))
	}
	return route + ":" + id
}

// Subscribe attaches l and returns the handle that detaches it.
func (s *Stack) Subscribe(l Listener) (release func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, l: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, entry := range s.listeners {
				if entry.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Push mounts route on top of the stack.
func (s *Stack) Push(route string) Scope {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	return s.enter(route)
}

// Pop unmounts the top route. It reports false when the stack is empty.
func (s *Stack) Pop() bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	top, ok := s.Top()
	if !ok {
		return false
	}
	s.exit(top)
	return true
}

// Replace unmounts the top route and mounts route in its place.
func (s *Stack) Replace(route string) Scope {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if top, ok := s.Top(); ok {
		s.exit(top)
	}
	return s.enter(route)
}

// Reset unmounts every route, top first, and mounts route as the only one.
func (s *Stack) Reset(route string) Scope {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	for {
		top, ok := s.Top()
		if !ok {
			break
		}
		s.exit(top)
	}
	return s.enter(route)
}

// Top returns the top scope.
func (s *Stack) Top() (Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scopes) == 0 {
		return Scope{}, false
	}
	return s.scopes[len(s.scopes)-1], true
}

// Depth returns the number of mounted routes.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scopes)
}

// Scopes returns the mounted scopes, bottom first.
func (s *Stack) Scopes() []Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Scope(nil), s.scopes...)
}

func (s *Stack) enter(route string) Scope {
	scope := Scope{ID: s.newID(route), Route: route}

	s.mu.Lock()
	s.scopes = append(s.scopes, scope)
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Debug().Str("scope", scope.ID).Str("route", route).Msg("Scope entered")
	for _, l := range listeners {
		l.ScopeEntered(scope.ID)
	}
	return scope
}

func (s *Stack) exit(scope Scope) {
	s.mu.Lock()
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	for _, l := range listeners {
		l.ScopeWillExit(scope.ID)
	}

	s.mu.Lock()
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if s.scopes[i].ID == scope.ID {
			s.scopes = append(s.scopes[:i], s.scopes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.logger.Debug().Str("scope", scope.ID).Str("route", scope.Route).Msg("Scope exited")
}

func (s *Stack) snapshotListeners() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, entry := range s.listeners {
		listeners = append(listeners, entry.l)
	}
	return listeners
}
