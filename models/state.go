package models

import (
	"errors"
	"fmt"
)

// State is the lifecycle state shared by contests, rounds and matches.
type State string

const (
	StateCreated  State = "created"
	StateStarted  State = "started"
	StateFinished State = "finished"
)

var ErrInvalidTransition = errors.New("invalid state transition")

func (s State) Valid() bool {
	switch s {
	case StateCreated, StateStarted, StateFinished:
		return true
	}
	return false
}

// Lifecycle is a guarded transition table over State.
type Lifecycle struct {
	name    string
	allowed map[State][]State
}

// Guard reports why a transition may not happen; nil allows it.
type Guard func() error

// StandardLifecycle: created -> started -> finished.
func StandardLifecycle(name string) Lifecycle {
	return Lifecycle{
		name: name,
		allowed: map[State][]State{
			StateCreated: {StateStarted},
			StateStarted: {StateFinished},
		},
	}
}

// ByeLifecycle additionally allows created -> finished.
func ByeLifecycle(name string) Lifecycle {
	l := StandardLifecycle(name)
	l.allowed[StateCreated] = []State{StateStarted, StateFinished}
	return l
}

func (l Lifecycle) Can(from, to State) bool {
	for _, next := range l.allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transit moves *current to next when the table and the guard allow it.
func (l Lifecycle) Transit(current *State, next State, guard Guard) error {
	if !l.Can(*current, next) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, l.name, *current, next)
	}
	if guard != nil {
		if err := guard(); err != nil {
			return err
		}
	}
	*current = next
	return nil
}
