package postgres

import (
	"testing"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	dsn := DSN(&cfg.PGDBCfg{
		Host:     "db",
		Port:     "5432",
		User:     "rec",
		Password: "secret",
		DBName:   "shop",
		SSLMode:  "disable",
	})

	assert.Equal(t, "host=db port=5432 user=rec password=secret dbname=shop sslmode=disable", dsn)
}
