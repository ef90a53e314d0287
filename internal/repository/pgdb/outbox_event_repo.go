package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/tr"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

type OutboxEventRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxEventRepo(pool *pgxpool.Pool) *OutboxEventRepo {
	return &OutboxEventRepo{pool: pool}
}

// Create записывает событие в текущей транзакции и будит outbox worker через NOTIFY.
func (o *OutboxEventRepo) Create(ctx context.Context, event *domain.OutboxEvent) (*usecase.OutboxEvent, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal payload: %w", whereami.WhereAmI(), err)
	}

	model := outboxEventModel{
		EventID:     event.ID,
		EventType:   event.EventType,
		AggregateID: event.AggregateID,
		Payload:     payload,
		Status:      string(usecase.Pending),
		CreatedAt:   event.CreatedAt,
	}

	query := `
		INSERT INTO outbox_events (
			event_id,
			event_type,
			aggregate_id,
			payload,
			status,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at;
	`

	if err := tx.QueryRow(ctx, query,
		model.EventID,
		model.EventType,
		model.AggregateID,
		model.Payload,
		model.Status,
		model.CreatedAt,
	).Scan(&model.ID, &model.CreatedAt); err != nil {
		if postgresDuplicate(err) {
			return nil, fmt.Errorf("%s: event with id %s already exists", whereami.WhereAmI(), event.ID)
		}

		return nil, fmt.Errorf("%s: failed to insert event: %w", whereami.WhereAmI(), err)
	}

	if _, err := tx.Exec(ctx, "NOTIFY outbox_pending;"); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toOutboxEntity(&model), nil
}

// GetAndMarkAsProcessing забирает пачку ожидающих событий и помечает их как обрабатываемые.
// Параллельные воркеры не получают одни и те же строки благодаря SKIP LOCKED.
func (o *OutboxEventRepo) GetAndMarkAsProcessing(ctx context.Context, limit int) (events []*usecase.OutboxEvent, err error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	query := `
		UPDATE outbox_events
		SET status = $1, processing_started_at = now()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2
			ORDER BY created_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, event_type, aggregate_id, payload, status, created_at, processed_at
	`

	rows, err := tx.Query(ctx, query, usecase.Processing, usecase.Pending, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to query pending events: %w", whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[outboxEventModel])
	if err != nil {
		return nil, fmt.Errorf("%s: failed to scan events: %w", whereami.WhereAmI(), err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", whereami.WhereAmI(), err)
	}

	events = make([]*usecase.OutboxEvent, 0, len(models))
	for i := range models {
		events = append(events, toOutboxEntity(&models[i]))
	}

	return events, nil
}

func (o *OutboxEventRepo) MarkAsProcessed(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processed_at = NOW()
		WHERE id = $2 AND status = $3
	`

	// Нулевое число затронутых строк означает, что событие уже обработал другой worker.
	if _, err := o.pool.Exec(ctx, query, usecase.Processed, id, usecase.Processing); err != nil {
		return fmt.Errorf("%s: failed to mark event %d as processed: %w", whereami.WhereAmI(), id, err)
	}

	return nil
}

// MarkAsFailed снимает событие с очереди без публикации: RequeueStale его больше не вернёт.
func (o *OutboxEventRepo) MarkAsFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_events
		SET status = $1, processing_started_at = NULL
		WHERE id = $2 AND status = $3
	`

	if _, err := o.pool.Exec(ctx, query, usecase.Failed, id, usecase.Processing); err != nil {
		return fmt.Errorf("%s: failed to mark event %d as failed: %w", whereami.WhereAmI(), id, err)
	}

	return nil
}

func toOutboxEntity(m *outboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          m.ID,
		EventID:     m.EventID,
		EventType:   m.EventType,
		AggregateID: m.AggregateID,
		Payload:     m.Payload,
		Status:      usecase.OutboxStatus(m.Status),
		CreatedAt:   m.CreatedAt,
		ProcessedAt: m.ProcessedAt,
	}
}

func (o *OutboxEventRepo) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE outbox_events
		SET status = $1, processing_started_at = NULL
		WHERE status = $2 AND processing_started_at < now() - make_interval(secs => $3)
	`

	result, err := o.pool.Exec(ctx, query, usecase.Pending, usecase.Processing, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("%s: failed to requeue stale events: %w", whereami.WhereAmI(), err)
	}

	return result.RowsAffected(), nil
}
