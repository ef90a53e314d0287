package pgdb

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/storefront"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// InteractionRepo читает взаимодействия пользователей с товарами из PostgreSQL витрины.
type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

// Interactions возвращает по одной строке на пару (пользователь, товар) из завершённых заказов.
// Если в контексте есть транзакция, чтение идёт в ней.
func (r *InteractionRepo) Interactions(ctx context.Context) ([]domain.Interaction, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, storefront.InteractionsQuery)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Interaction, error) {
		var it domain.Interaction
		err := row.Scan(&it.UserID, &it.ProductID, &it.Strength)
		return it, err
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
