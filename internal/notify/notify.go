// Package notify delivers completion transitions and questionnaire outcomes
// to the collaborators that render UI and emit learning records.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

// Kind tells which payload a notification carries.
type Kind string

const (
	KindTransition Kind = "transition"
	KindOutcome    Kind = "part_outcome"
)

// Notification is one output event of an engine.
type Notification struct {
	ID          string                     `json:"id"`
	UnitID      string                     `json:"unitId"`
	Fingerprint string                     `json:"fingerprint,omitempty"`
	LearnerID   string                     `json:"learnerId,omitempty"`
	Kind        Kind                       `json:"kind"`
	Transition  *completion.Transition     `json:"transition,omitempty"`
	Outcome     *questionnaire.PartOutcome `json:"outcome,omitempty"`
	// QuestionnaireID is the block id owning an outcome.
	QuestionnaireID string    `json:"questionnaireId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// EntityID returns the entity the notification is about.
func (n Notification) EntityID() string {
	switch {
	case n.Transition != nil:
		return n.Transition.EntityID
	case n.Outcome != nil:
		return n.Outcome.PartID
	}
	return ""
}

func (n Notification) validate() error {
	switch n.Kind {
	case KindTransition:
		if n.Transition == nil {
			return fmt.Errorf("transition notification without transition")
		}
	case KindOutcome:
		if n.Outcome == nil {
			return fmt.Errorf("outcome notification without outcome")
		}
	default:
		return fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	if n.UnitID == "" {
		return fmt.Errorf("unit_id is required")
	}
	return nil
}

// stamp fills the id and creation time when missing.
func (n *Notification) stamp() {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
}

// Sink receives notifications.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// NopSink ignores all notifications.
type NopSink struct{}

func (NopSink) Notify(context.Context, Notification) error {
	return nil
}

// MemorySink stores notifications in memory for tests.
type MemorySink struct {
	mu    sync.Mutex
	items []Notification
}

func NewMemorySink() *MemorySink {
	return &MemorySink{items: []Notification{}}
}

func (s *MemorySink) Notify(_ context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	n.stamp()

	s.mu.Lock()
	s.items = append(s.items, n)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification{}, s.items...)
}

// MultiSink fans a notification out to every sink. A failing sink does not
// stop delivery to the others.
type MultiSink []Sink

func (m MultiSink) Notify(ctx context.Context, n Notification) error {
	n.stamp()
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			slog.Warn("notification sink failed",
				"sink", fmt.Sprintf("%T", s),
				"unit_id", n.UnitID,
				"entity_id", n.EntityID(),
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
