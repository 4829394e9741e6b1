// Package state holds the single process-wide auth state, driven only by a
// fixed set of actions. Consumers read snapshots; nothing mutates the state
// except Dispatch.
package state

import (
	"sync"

	"go-session-agent/internal/model"
)

// State is the auth snapshot handed to consumers. Version increases on
// every applied action so callers can detect staleness.
type State struct {
	User            *model.User `json:"user"`
	IsAuthenticated bool        `json:"is_authenticated"`
	IsLoading       bool        `json:"is_loading"`
	Error           string      `json:"error,omitempty"`
	Version         uint64      `json:"version"`
}

// Action is the closed set of state transitions. Every action is valid in
// every state; there are no invalid transitions.
type Action interface {
	isAction()
}

type LoginStart struct{}

type LoginSuccess struct {
	User *model.User
}

type LoginFailure struct {
	Message string
}

type Logout struct{}

type RefreshSuccess struct {
	User *model.User
}

type RefreshFailure struct{}

type SetLoading struct {
	Loading bool
}

type ClearError struct{}

func (LoginStart) isAction()     {}
func (LoginSuccess) isAction()   {}
func (LoginFailure) isAction()   {}
func (Logout) isAction()         {}
func (RefreshSuccess) isAction() {}
func (RefreshFailure) isAction() {}
func (SetLoading) isAction()     {}
func (ClearError) isAction()     {}

// Subscriber is notified with the state after each applied action.
// Notifications run on the dispatcher's goroutine.
type Subscriber func(s State)

// Machine is the single owner of the mutable auth state.
type Machine struct {
	mu          sync.Mutex
	state       State
	subscribers map[uint64]Subscriber
	nextSubID   uint64
}

func NewMachine() *Machine {
	return &Machine{
		subscribers: map[uint64]Subscriber{},
	}
}

// Dispatch applies one action and returns the resulting snapshot.
// Transitions keep the invariant isAuthenticated == (user != nil); a
// LoginStart only toggles the loading flag while the exchange is in flight.
func (m *Machine) Dispatch(a Action) State {
	m.mu.Lock()

	switch action := a.(type) {
	case LoginStart:
		m.state.IsLoading = true
		m.state.Error = ""
	case LoginSuccess:
		m.state.User = action.User
		m.state.IsAuthenticated = action.User != nil
		m.state.IsLoading = false
		m.state.Error = ""
	case LoginFailure:
		m.state.User = nil
		m.state.IsAuthenticated = false
		m.state.IsLoading = false
		m.state.Error = action.Message
	case Logout:
		m.state.User = nil
		m.state.IsAuthenticated = false
		m.state.IsLoading = false
		m.state.Error = ""
	case RefreshSuccess:
		m.state.User = action.User
		m.state.IsAuthenticated = action.User != nil
		m.state.Error = ""
	case RefreshFailure:
		m.state.User = nil
		m.state.IsAuthenticated = false
		m.state.Error = "Token refresh failed"
	case SetLoading:
		m.state.IsLoading = action.Loading
	case ClearError:
		m.state.Error = ""
	}

	m.state.Version++
	snapshot := m.state

	targets := make([]Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	for _, sub := range targets {
		sub(snapshot)
	}

	return snapshot
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// CurrentUser returns the authenticated user snapshot, or nil.
func (m *Machine) CurrentUser() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.User
}

// Subscribe registers a subscriber and returns its unsubscribe function.
func (m *Machine) Subscribe(sub Subscriber) func() {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = sub
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}
