package wizard

import "time"

type EventKind string

const (
	EventOccasionSelected  EventKind = "occasion_selected"
	EventRecipientSelected EventKind = "recipient_selected"
	EventRoundStarted      EventKind = "round_started"
	EventRoundCompleted    EventKind = "round_completed"
	EventRoundFailed       EventKind = "round_failed"
	// EventRoundDiscarded: the response was logged but the dialog had moved on.
	EventRoundDiscarded    EventKind = "round_discarded"
	EventFeedbackRecorded  EventKind = "feedback_recorded"
	EventRefinementOffered EventKind = "refinement_offered"
	EventNavigatedBack     EventKind = "navigated_back"
)

// RoundKind names the transition that issued a backend round.
type RoundKind string

const (
	RoundFreeText   RoundKind = "free_text"
	RoundQuery      RoundKind = "query"
	RoundRefinement RoundKind = "refinement"
)

// Event describes one state change. Step is the step after the change.
type Event struct {
	Kind     EventKind
	Step     Step
	Round    RoundKind
	Reason   RefinementReason
	Feedback Feedback
	Products int
	Latency  time.Duration
	Err      error
}
