package domain

import (
	"time"

	"github.com/google/uuid"
)

// ModelFamily — семейство моделей, обучаемых независимо.
type ModelFamily string

const (
	FamilyCollaborative ModelFamily = "collaborative"
	FamilyContent       ModelFamily = "content"
)

// AllFamilies в порядке фонового прохода: сначала коллаборативная модель, затем контентная.
var AllFamilies = []ModelFamily{FamilyCollaborative, FamilyContent}

// TrainOutcome — ответ на запрос обучения.
type TrainOutcome string

const (
	TrainStarted    TrainOutcome = "training_started"
	TrainInProgress TrainOutcome = "training_in_progress"
	TrainCompleted  TrainOutcome = "training_completed"
)

// CollaborativeStatus описывает текущий снимок коллаборативной модели.
type CollaborativeStatus struct {
	Trained         bool
	NumProducts     int
	NumUsers        int
	LastTrained     *time.Time
	NeedsRetraining bool
}

// ContentStatus описывает текущий снимок контентной модели.
type ContentStatus struct {
	Trained     bool
	NumProducts int
	BuiltAt     *time.Time
}

// TrainingStatus — сводный отчёт о состоянии моделей.
type TrainingStatus struct {
	Collaborative CollaborativeStatus
	Content       ContentStatus
	IsTraining    bool
}

// RunResult — итог одного прохода обучения.
type RunResult string

const (
	RunSucceeded RunResult = "succeeded"
	RunSkipped   RunResult = "skipped"
	RunFailed    RunResult = "failed"
)

// TrainingRun — запись истории обучения.
type TrainingRun struct {
	ID          uuid.UUID
	Family      ModelFamily
	Result      RunResult
	NumProducts int
	NumUsers    int
	BuildID     string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// NewTrainingRun создаёт запись о начатом проходе.
func NewTrainingRun(family ModelFamily, startedAt time.Time) *TrainingRun {
	return &TrainingRun{
		ID:        uuid.New(),
		Family:    family,
		StartedAt: startedAt,
	}
}

// Duration — длительность прохода.
func (r *TrainingRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
