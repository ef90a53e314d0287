package pgdb

import (
	"context"
	"errors"

	"github.com/DRSN-tech/recommender/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgQuerier — общее подмножество pgxpool.Pool и pgx.Tx.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// querier возвращает транзакцию из контекста, а если её нет, пул.
func querier(ctx context.Context, pool *pgxpool.Pool) pgQuerier {
	if tx, err := tr.TxFromCtx(ctx); err == nil {
		return tx
	}
	return pool
}

// postgresDuplicate сообщает о нарушении уникального ограничения.
func postgresDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
