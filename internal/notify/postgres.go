package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresSink inserts notifications into the unit_notifications table.
type PostgresSink struct {
	pool *pgxpool.Pool
}

func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

func (s *PostgresSink) Notify(ctx context.Context, n Notification) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("notification sink pool is nil")
	}
	if err := n.validate(); err != nil {
		return err
	}
	n.stamp()

	var payload any = n.Transition
	if n.Kind == KindOutcome {
		payload = n.Outcome
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO unit_notifications (id, unit_id, fingerprint, learner_id, kind, entity_id, data, created_at)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, $7::jsonb, $8)`,
		n.ID,
		n.UnitID,
		n.Fingerprint,
		n.LearnerID,
		string(n.Kind),
		n.EntityID(),
		string(data),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	slog.Debug("notification stored",
		"kind", n.Kind,
		"unit_id", n.UnitID,
		"entity_id", n.EntityID(),
		"learner_id", n.LearnerID,
	)
	return nil
}

// Stored is a notification row read back from Postgres.
type Stored struct {
	ID        string
	Kind      Kind
	EntityID  string
	Data      json.RawMessage
	CreatedAt time.Time
}

// List returns the notifications of one learner in a unit, oldest first.
func (s *PostgresSink) List(ctx context.Context, unitID, learnerID string) ([]Stored, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("notification sink pool is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, kind, entity_id, data, created_at
		 FROM unit_notifications
		 WHERE unit_id = $1 AND learner_id = $2
		 ORDER BY created_at, id`,
		unitID, learnerID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var st Stored
		var kind string
		var data []byte
		if err := rows.Scan(&st.ID, &kind, &st.EntityID, &data, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		st.Kind = Kind(kind)
		st.Data = data
		out = append(out, st)
	}
	return out, rows.Err()
}
