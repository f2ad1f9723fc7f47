package session

import "fmt"

// State is the session lifecycle state. Transitions are validated: a session
// can only move along the edges below, so an orchestrator bug that tries to
// commit without verifying is caught at the seam instead of corrupting state.
type State string

const (
	StatePending    State = "pending"
	StateValidating State = "validating"
	StateExecuting  State = "executing"
	StateVerifying  State = "verifying"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolled-back"
	StateFailed     State = "failed"
	StateClosed     State = "closed"
)

var transitions = map[State][]State{
	StatePending:    {StateValidating},
	StateValidating: {StateExecuting, StateFailed},
	StateExecuting:  {StateVerifying, StateCommitted, StateRolledBack, StateFailed},
	StateVerifying:  {StateExecuting, StateCommitted, StateRolledBack, StateFailed},
	StateCommitted:  {StateClosed},
	StateRolledBack: {StateClosed},
	StateFailed:     {StateClosed},
	StateClosed:     {},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a pre-close terminal state.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateRolledBack || s == StateFailed
}

// machine tracks one session's state with validated transitions.
type machine struct {
	state State
}

func newMachine() *machine {
	return &machine{state: StatePending}
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("illegal session transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
