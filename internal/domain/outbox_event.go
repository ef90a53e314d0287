package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventModelTrained — тип события об успешно опубликованном снимке модели.
const EventModelTrained = "model.trained"

// OutboxEvent — событие, ожидающее публикации в Kafka.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string // семейство модели; используется как ключ сообщения
	EventType   string
	Payload     map[string]any
	CreatedAt   time.Time
}

// NewModelTrainedEvent строит событие по завершённому проходу обучения.
func NewModelTrainedEvent(run *TrainingRun) *OutboxEvent {
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: string(run.Family),
		EventType:   EventModelTrained,
		Payload: map[string]any{
			"run_id":       run.ID.String(),
			"family":       string(run.Family),
			"build_id":     run.BuildID,
			"num_products": run.NumProducts,
			"num_users":    run.NumUsers,
			"finished_at":  run.FinishedAt.UTC().Format(time.RFC3339Nano),
		},
		CreatedAt: run.FinishedAt,
	}
}
