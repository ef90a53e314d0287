package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/repository/storefront"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplySchema(context.Background()))

	return s
}

func exec(t *testing.T, s *Store, query string, args ...any) {
	t.Helper()
	_, err := s.DB().Exec(query, args...)
	require.NoError(t, err)
}

func TestStore_Interactions(t *testing.T) {
	s := newTestStore(t)
	exec(t, s, storefront.Fixture)

	got, err := s.Interactions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Interaction{
		{UserID: 10, ProductID: 1, Strength: 5},
		{UserID: 10, ProductID: 2, Strength: 1},
		{UserID: 11, ProductID: 3, Strength: 4},
	}, got)
}

func TestStore_Interactions_NoCompletedOrders(t *testing.T) {
	s := newTestStore(t)

	exec(t, s, `INSERT INTO products (id, name, price, stock) VALUES (1, 'a', 1.0, 1)`)
	exec(t, s, `INSERT INTO orders (id, user_id, status) VALUES (1, 10, 'pending')`)
	exec(t, s, `INSERT INTO cart_items (order_id, product_id, quantity) VALUES (1, 1, 1)`)

	got, err := s.Interactions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestStore_InStockProducts(t *testing.T) {
	s := newTestStore(t)
	exec(t, s, storefront.Fixture)

	got, err := s.InStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].ID)
	require.NotNil(t, got[0].Description)
	assert.Equal(t, "Dark roast", *got[0].Description)
	require.NotNil(t, got[0].Category)
	assert.Equal(t, "Coffee", *got[0].Category)
	assert.Equal(t, int64(5), got[0].Stock)
	assert.Equal(t, "Espresso beans. Dark roast. Category: Coffee", got[0].Profile())

	assert.Equal(t, int64(2), got[1].ID)
	assert.Nil(t, got[1].Description)
	assert.Nil(t, got[1].Category)
	assert.Equal(t, "Grinder", got[1].Profile())
}

// Таблицы созданы витриной: без categories, категория хранится строкой в products.
func TestStore_ReadsExistingStorefrontDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`
		CREATE TABLE products (
			id INTEGER PRIMARY KEY, name VARCHAR(255) NOT NULL, description TEXT,
			price FLOAT NOT NULL, stock INTEGER, category VARCHAR(100), image_url VARCHAR(500),
			created_at DATETIME, updated_at DATETIME
		);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, status VARCHAR(50), total_amount FLOAT NOT NULL);
		CREATE TABLE cart_items (id INTEGER PRIMARY KEY, order_id INTEGER, product_id INTEGER, quantity INTEGER);
		INSERT INTO products (id, name, description, price, stock, category) VALUES
			(7, 'Wireless headphones', 'Noise cancelling', 199.0, 3, 'Electronics');
		INSERT INTO orders (id, user_id, status, total_amount) VALUES (1, 42, 'completed', 398.0);
		INSERT INTO cart_items (id, order_id, product_id, quantity) VALUES (1, 1, 7, 2);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	products, err := s.InStockProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Wireless headphones. Noise cancelling. Category: Electronics", products[0].Profile())

	interactions, err := s.Interactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Interaction{{UserID: 42, ProductID: 7, Strength: 2}}, interactions)

	var tables int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'categories'`).Scan(&tables))
	assert.Zero(t, tables)
}
