package tasks

import "fmt"

// Policy decides which status transitions are legal.
type Policy interface {
	Allow(from, to Status) bool
	Name() string
}

type strictPolicy struct{}

// Allow permits Todo -> InProgress and Todo|InProgress -> Completed|Cancelled.
// Completed and Cancelled are terminal.
func (strictPolicy) Allow(from, to Status) bool {
	switch to {
	case StatusInProgress:
		return from == StatusTodo
	case StatusCompleted, StatusCancelled:
		return from == StatusTodo || from == StatusInProgress
	default:
		return false
	}
}

func (strictPolicy) Name() string { return "strict" }

type permissivePolicy struct{}

func (permissivePolicy) Allow(_, to Status) bool { return to.Valid() }

func (permissivePolicy) Name() string { return "permissive" }

var (
	// Strict is the collaborative state machine: terminal states cannot be left.
	Strict Policy = strictPolicy{}
	// Permissive allows any transition, including re-entering a finished state.
	Permissive Policy = permissivePolicy{}
)

// ParsePolicy maps a config value to a Policy. Empty means strict.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "", "strict":
		return Strict, nil
	case "permissive":
		return Permissive, nil
	default:
		return nil, fmt.Errorf("unknown transition policy %q", name)
	}
}
