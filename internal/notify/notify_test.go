package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-unit/internal/completion"
	"github.com/p-n-ai/pai-unit/internal/notify"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

func transition() notify.Notification {
	return notify.Notification{
		UnitID: "algebra",
		Kind:   notify.KindTransition,
		Transition: &completion.Transition{
			EntityID: "containers/intro",
			Kind:     completion.EntityContainer,
			Previous: completion.Visible,
			Next:     completion.Done,
		},
	}
}

func TestMemorySink_Notify(t *testing.T) {
	sink := notify.NewMemorySink()

	if err := sink.Notify(t.Context(), transition()); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	items := sink.Notifications()
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].ID == "" {
		t.Error("ID should be set")
	}
	if items[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if items[0].EntityID() != "containers/intro" {
		t.Errorf("EntityID() = %q", items[0].EntityID())
	}
}

func TestMemorySink_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		n    notify.Notification
	}{
		{"no kind", notify.Notification{UnitID: "u"}},
		{"transition without payload", notify.Notification{UnitID: "u", Kind: notify.KindTransition}},
		{"outcome without payload", notify.Notification{UnitID: "u", Kind: notify.KindOutcome}},
		{"no unit", notify.Notification{Kind: notify.KindOutcome, Outcome: &questionnaire.PartOutcome{PartID: "first"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := notify.NewMemorySink().Notify(t.Context(), tt.n); err == nil {
				t.Error("Notify() should fail")
			}
		})
	}
}

func TestNotification_JSON(t *testing.T) {
	n := transition()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	tr := got["transition"].(map[string]any)
	if tr["previousState"] != "visible" || tr["newState"] != "done" {
		t.Errorf("transition = %v, want textual states", tr)
	}
}

type failingSink struct{}

func (failingSink) Notify(context.Context, notify.Notification) error {
	return errors.New("sink down")
}

func TestMultiSink_DeliversDespiteFailure(t *testing.T) {
	a, b := notify.NewMemorySink(), notify.NewMemorySink()
	multi := notify.MultiSink{a, failingSink{}, b}

	err := multi.Notify(t.Context(), transition())
	if err == nil {
		t.Fatal("Notify() should report the failing sink")
	}
	if len(a.Notifications()) != 1 || len(b.Notifications()) != 1 {
		t.Fatalf("healthy sinks got %d and %d notifications", len(a.Notifications()), len(b.Notifications()))
	}
	if a.Notifications()[0].ID != b.Notifications()[0].ID {
		t.Error("fan-out should share one notification id")
	}
}

type recordingPublisher struct {
	channel string
	payload []byte
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, payload []byte) (int64, error) {
	p.channel = channel
	p.payload = payload
	return 1, nil
}

func TestRedisSink_Notify(t *testing.T) {
	pub := &recordingPublisher{}
	sink := notify.NewRedisSink(pub, "unit-notifications")

	passed := true
	n := notify.Notification{
		UnitID:          "algebra",
		LearnerID:       "learner-1",
		Kind:            notify.KindOutcome,
		QuestionnaireID: "containers/quiz/blocks/0",
		Outcome:         &questionnaire.PartOutcome{PartID: "first", Score: 4, Passed: &passed, Outcome: questionnaire.OutcomePassed},
	}
	if err := sink.Notify(t.Context(), n); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if pub.channel != "unit-notifications" {
		t.Errorf("channel = %q", pub.channel)
	}

	var got notify.Notification
	if err := json.Unmarshal(pub.payload, &got); err != nil {
		t.Fatalf("payload is not a notification: %v", err)
	}
	if got.Outcome == nil || got.Outcome.PartID != "first" || got.Outcome.Score != 4 {
		t.Errorf("outcome = %+v", got.Outcome)
	}
	if got.ID == "" {
		t.Error("published notification should carry an id")
	}
}

func TestRedisSink_NilPublisher(t *testing.T) {
	if err := notify.NewRedisSink(nil, "c").Notify(t.Context(), transition()); err == nil {
		t.Fatal("expected error for nil publisher")
	}
}

func TestPostgresSink_NilPool(t *testing.T) {
	sink := notify.NewPostgresSink(nil)
	if err := sink.Notify(t.Context(), transition()); err == nil {
		t.Fatal("expected error for nil pool")
	}
	if _, err := sink.List(t.Context(), "algebra", "learner-1"); err == nil {
		t.Fatal("expected error for nil pool")
	}
}
