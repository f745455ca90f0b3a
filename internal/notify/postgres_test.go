package notify_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-unit/internal/notify"
	"github.com/p-n-ai/pai-unit/internal/platform/database"
	"github.com/p-n-ai/pai-unit/internal/questionnaire"
)

func TestPostgresSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := t.Context()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("learn"),
		postgres.WithUsername("learn"),
		postgres.WithPassword("learn"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, url, 2, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	sink := notify.NewPostgresSink(db.Pool)
	first := transition()
	first.LearnerID = "learner-1"
	first.CreatedAt = time.Now().Add(-time.Minute)
	if err := sink.Notify(ctx, first); err != nil {
		t.Fatalf("Notify(transition) error = %v", err)
	}
	second := notify.Notification{
		UnitID:    "algebra",
		LearnerID: "learner-1",
		Kind:      notify.KindOutcome,
		Outcome:   &questionnaire.PartOutcome{PartID: "first", Score: 3, Outcome: questionnaire.OutcomeScored},
	}
	if err := sink.Notify(ctx, second); err != nil {
		t.Fatalf("Notify(outcome) error = %v", err)
	}
	other := transition()
	other.LearnerID = "learner-2"
	if err := sink.Notify(ctx, other); err != nil {
		t.Fatalf("Notify(other learner) error = %v", err)
	}

	rows, err := sink.List(ctx, "algebra", "learner-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Kind != notify.KindTransition || rows[0].EntityID != "containers/intro" {
		t.Errorf("rows[0] = %+v", rows[0])
	}
	var outcome questionnaire.PartOutcome
	if err := json.Unmarshal(rows[1].Data, &outcome); err != nil {
		t.Fatalf("outcome data: %v", err)
	}
	if outcome.PartID != "first" || outcome.Score != 3 {
		t.Errorf("outcome = %+v", outcome)
	}
}
