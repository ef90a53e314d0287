package usecase

import (
	"context"
	"time"
)

// ArtifactStore хранит копии снимков контентной модели вне локального диска.
type ArtifactStore interface {
	Upload(ctx context.Context, buildID, dir string) error
	DownloadLatest(ctx context.Context, dir string) (string, error)
}

// MessageProducer публикует события outbox.
type MessageProducer interface {
	WriteEvent(ctx context.Context, event *OutboxEvent) error
}

// Metrics — метрики обучения и выдачи.
type Metrics interface {
	ObserveTraining(family, result string, d time.Duration)
	SetTrainingActive(family string, active bool)
	SetSnapshotSize(family string, products int)
	ObserveQuery(kind, mode string, d time.Duration, results int)
	CacheResult(hit bool)
}
