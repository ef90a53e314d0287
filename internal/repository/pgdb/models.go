package pgdb

import (
	"time"

	"github.com/google/uuid"
)

// trainingRunModel представляет запись таблицы training_runs.
type trainingRunModel struct {
	ID          uuid.UUID `db:"id"`
	Family      string    `db:"family"`
	Result      string    `db:"result"`
	NumProducts int       `db:"num_products"`
	NumUsers    int       `db:"num_users"`
	BuildID     *string   `db:"build_id"`
	Error       *string   `db:"error"`
	StartedAt   time.Time `db:"started_at"`
	FinishedAt  time.Time `db:"finished_at"`
}

// outboxEventModel представляет запись таблицы outbox_events.
type outboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     uuid.UUID  `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
