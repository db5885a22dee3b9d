package calls

import "fmt"

// InvalidTransitionError reports a state change the lifecycle table forbids.
// Callers must surface it rather than swallow it; a rejected transition is
// how retries and bugs become visible instead of corrupting call state.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// validTransitions is the complete lifecycle table. Anything absent is rejected.
var validTransitions = map[Status]map[Status]struct{}{
	StatusInProgress: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {
		StatusProcessingAI: {},
		StatusArchived:     {},
	},
	StatusProcessingAI: {
		StatusCompleted: {}, // analysis success, result attached
		StatusFailed:    {}, // retries exhausted
	},
	StatusFailed: {
		StatusArchived: {},
	},
	StatusArchived: {},
}

// CanTransition reports whether the lifecycle table permits from -> to.
func CanTransition(from, to Status) bool {
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Transition validates a state change. Staying in the same state is an
// idempotent no-op; every other pair outside the table returns
// *InvalidTransitionError.
func Transition(from, to Status) (Status, error) {
	if from == to {
		return to, nil
	}
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// ValidNext returns the set of statuses reachable from the given status.
func ValidNext(from Status) []Status {
	next := validTransitions[from]
	if len(next) == 0 {
		return nil
	}
	out := make([]Status, 0, len(next))
	for _, status := range allStatuses {
		if _, ok := next[status]; ok {
			out = append(out, status)
		}
	}
	return out
}
