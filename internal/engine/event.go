package engine

import (
	"time"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/navigation"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

// EventKind is the type of a learner event.
type EventKind string

const (
	EventVisible    EventKind = "visible"
	EventInteracted EventKind = "interacted"
	EventCompleted  EventKind = "completed"
	EventAnswer     EventKind = "answer"
	EventTimeout    EventKind = "timeout"
	EventAttempt    EventKind = "attempt"
	EventBegin      EventKind = "begin"
	EventAbandon    EventKind = "abandon"
	EventAction     EventKind = "action"
	EventFeedback   EventKind = "feedback"
	EventReview     EventKind = "review"
)

// Payload carries the kind-specific fields of an event.
type Payload struct {
	// Index selects a card, label, button, tab or step.
	Index    int    `json:"index,omitempty"`
	Position int    `json:"position,omitempty"`
	Response string `json:"response,omitempty"`
	// At overrides the clock for timeout events.
	At *time.Time `json:"at,omitempty"`
}

// Event is one learner event addressed to an entity.
type Event struct {
	TargetID string    `json:"targetId"`
	Kind     EventKind `json:"kind"`
	Payload  Payload   `json:"payload"`
}

// Result is the synchronous answer to an event.
type Result struct {
	Accepted    bool                        `json:"accepted"`
	Transitions []completion.Transition     `json:"transitions"`
	Outcomes    []questionnaire.PartOutcome `json:"outcomes"`
	Redirect    *navigation.Redirect        `json:"redirect,omitempty"`
	Returns     []navigation.Return         `json:"returns,omitempty"`
	Answer      *questionnaire.AnswerResult `json:"answer,omitempty"`
	Next        *QuestionView               `json:"next,omitempty"`
	Status      *QuestionnaireStatus        `json:"questionnaire,omitempty"`
	Feedback    *questionnaire.Feedback     `json:"feedback,omitempty"`
	Review      []questionnaire.ReviewItem  `json:"review,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

func newResult() Result {
	return Result{
		Transitions: []completion.Transition{},
		Outcomes:    []questionnaire.PartOutcome{},
	}
}
