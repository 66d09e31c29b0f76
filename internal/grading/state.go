package grading

import "fmt"

// State is the lifecycle position of a (student, content item) grade.
type State string

const (
	StateUngraded      State = "ungraded"
	StatePendingReview State = "pending_review"
	StateGraded        State = "graded"
	StateDisputed      State = "disputed"
)

// Event drives a grade from one state to the next.
type Event string

const (
	EventObjectiveSubmission Event = "objective_submission"
	EventManualSubmission    Event = "manual_submission"
	EventScore               Event = "score"
	EventFileDispute         Event = "file_dispute"
	EventRejectDispute       Event = "reject_dispute"
	EventAcceptDispute       Event = "accept_dispute"
)

var transitions = map[State]map[Event]State{
	StateUngraded: {
		EventObjectiveSubmission: StateGraded,
		EventManualSubmission:    StatePendingReview,
		EventScore:               StateGraded,
	},
	StatePendingReview: {
		EventObjectiveSubmission: StateGraded,
		EventManualSubmission:    StatePendingReview,
		EventScore:               StateGraded,
	},
	StateGraded: {
		EventObjectiveSubmission: StateGraded,
		EventManualSubmission:    StatePendingReview,
		EventScore:               StateGraded,
		EventFileDispute:         StateDisputed,
	},
	StateDisputed: {
		EventRejectDispute: StateGraded,
		EventAcceptDispute: StateGraded,
	},
}

// Transition returns the state reached by applying event to from, or
// ErrInvalidTransition when the event is not allowed there.
func Transition(from State, event Event) (State, error) {
	next, ok := transitions[from][event]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
	}
	return next, nil
}

// StateOf derives the lifecycle state from the stored grade flags.
func StateOf(exists, pending, disputed bool) State {
	switch {
	case !exists:
		return StateUngraded
	case disputed:
		return StateDisputed
	case pending:
		return StatePendingReview
	default:
		return StateGraded
	}
}
