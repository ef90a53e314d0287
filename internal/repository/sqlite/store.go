// Package sqlite — источник данных витрины поверх локального файла SQLite.
// Используется в разработке и тестах вместо PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/storefront"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/jimlawless/whereami"
	_ "modernc.org/sqlite"
)

// Store читает взаимодействия и каталог из SQLite.
type Store struct {
	db *sql.DB
}

// Open открывает базу по пути (":memory:" для базы в памяти). Таблицы витрины не создаются,
// для пустой базы есть ApplySchema.
func Open(path string) (*Store, error) {
	const op = "sqlite.Open"

	if dir := filepath.Dir(path); path != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// база в памяти живёт, пока жив её единственный коннект
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// ApplySchema создаёт таблицы витрины, которых ещё нет.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, storefront.Schema); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}

// DB отдаёт соединение для наполнения данными.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Interactions агрегирует количество купленного товара по завершённым заказам.
func (s *Store) Interactions(ctx context.Context) ([]domain.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, storefront.InteractionsQuery)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Interaction, 0)
	for rows.Next() {
		var it domain.Interaction
		if err := rows.Scan(&it.UserID, &it.ProductID, &it.Strength); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, it)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// InStockProducts возвращает товары с положительным остатком.
func (s *Store) InStockProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, storefront.InStockProductsQuery)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		var (
			p           domain.Product
			description sql.NullString
			category    sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &description, &category, &p.Stock); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if description.Valid {
			p.Description = &description.String
		}
		if category.Valid {
			p.Category = &category.String
		}
		result = append(result, p)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
