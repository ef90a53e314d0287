package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// InteractionRepository читает агрегированные покупки из завершённых заказов.
type InteractionRepository interface {
	Interactions(ctx context.Context) ([]domain.Interaction, error)
}

// CatalogRepository читает товары в наличии.
type CatalogRepository interface {
	InStockProducts(ctx context.Context) ([]domain.Product, error)
}

// TrainingRunRepository сохраняет историю обучения. Требует транзакцию в контексте.
type TrainingRunRepository interface {
	Create(ctx context.Context, run *domain.TrainingRun) error
}

// OutboxRepository — очередь событий для публикации в Kafka.
type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
	// RequeueStale возвращает в pending события, зависшие в processing дольше olderThan.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RankingCache хранит готовые выдачи. Промах возвращает e.ErrCacheMiss.
type RankingCache interface {
	Get(ctx context.Context, key string) ([]domain.ScoredProduct, error)
	Set(ctx context.Context, key string, items []domain.ScoredProduct) error
}
