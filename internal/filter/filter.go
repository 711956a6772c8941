// Package filter holds the scheme-listing filter: at most one of a state id
// or a category id is selected at any time.
package filter

import (
	"strings"
	"sync"
)

type Selection struct {
	StateID    string
	CategoryID string
}

func (s Selection) Empty() bool {
	return s.StateID == "" && s.CategoryID == ""
}

type State struct {
	mu        sync.Mutex
	cur       Selection
	listeners []func(Selection)
}

func New() *State {
	return &State{}
}

func (s *State) Current() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// SetState selects a state and clears the category.
func (s *State) SetState(id string) {
	s.apply(Selection{StateID: strings.TrimSpace(id)})
}

// SetCategory selects a category and clears the state.
func (s *State) SetCategory(id string) {
	s.apply(Selection{CategoryID: strings.TrimSpace(id)})
}

func (s *State) Reset() {
	s.apply(Selection{})
}

// OnChange registers fn to run after every change, outside the lock.
func (s *State) OnChange(fn func(Selection)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *State) apply(next Selection) {
	s.mu.Lock()
	s.cur = next
	listeners := append(([]func(Selection))(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}
