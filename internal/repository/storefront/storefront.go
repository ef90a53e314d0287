// Package storefront описывает таблицы витрины, из которых читает сервис:
// products, orders и cart_items. Запросы общие для PostgreSQL и SQLite.
package storefront

import _ "embed"

// Schema — DDL таблиц витрины в подмножестве SQL, общем для PostgreSQL и SQLite.
// Сервис эти таблицы не создаёт: схема нужна для тестов и локальной базы.
//
//go:embed schema.sql
var Schema string

// Fixture — небольшой набор данных витрины поверх Schema.
//
//go:embed fixture.sql
var Fixture string

// InteractionsQuery агрегирует количество купленного товара по паре пользователь-товар
// в завершённых заказах. Колонки: user_id, product_id, strength.
const InteractionsQuery = `
	SELECT o.user_id, ci.product_id, CAST(SUM(ci.quantity) AS DOUBLE PRECISION) AS strength
	FROM orders o
	JOIN cart_items ci ON ci.order_id = o.id
	WHERE o.status = 'completed'
	GROUP BY o.user_id, ci.product_id
	ORDER BY o.user_id, ci.product_id
`

// InStockProductsQuery — товары с положительным остатком.
// Колонки: id, name, description, category, stock; description и category могут быть NULL.
const InStockProductsQuery = `
	SELECT id, name, description, category, stock
	FROM products
	WHERE stock > 0
	ORDER BY id
`
