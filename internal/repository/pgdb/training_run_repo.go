package pgdb

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/tr"
	"github.com/jimlawless/whereami"
)

// TrainingRunRepo хранит историю проходов обучения.
type TrainingRunRepo struct{}

func NewTrainingRunRepo() *TrainingRunRepo {
	return &TrainingRunRepo{}
}

// Create сохраняет запись о проходе. Работает только внутри транзакции.
func (r *TrainingRunRepo) Create(ctx context.Context, run *domain.TrainingRun) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := toTrainingRunModel(run)
	query := `
		INSERT INTO training_runs (
			id, family, result, num_products, num_users, build_id, error, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if _, err := tx.Exec(ctx, query,
		model.ID,
		model.Family,
		model.Result,
		model.NumProducts,
		model.NumUsers,
		model.BuildID,
		model.Error,
		model.StartedAt,
		model.FinishedAt,
	); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

func toTrainingRunModel(run *domain.TrainingRun) trainingRunModel {
	return trainingRunModel{
		ID:          run.ID,
		Family:      string(run.Family),
		Result:      string(run.Result),
		NumProducts: run.NumProducts,
		NumUsers:    run.NumUsers,
		BuildID:     nullableString(run.BuildID),
		Error:       nullableString(run.Error),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}
