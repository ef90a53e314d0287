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

// CatalogRepo читает каталог товаров витрины.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// InStockProducts возвращает товары с положительным остатком.
func (r *CatalogRepo) InStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, storefront.InStockProductsQuery)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Product, error) {
		var p domain.Product
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Stock)
		return p, err
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
