package cfg

import (
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SQLiteDefaults(t *testing.T) {
	t.Setenv("DATA_SOURCE", DataSourceSQLite)
	t.Setenv("SQLITE_PATH", "tmp/dev.db")

	c, err := Load(logger.NewNop())
	require.NoError(t, err)

	assert.Nil(t, c.Db)
	assert.Equal(t, "tmp/dev.db", c.SQLite.Path)
	assert.False(t, c.SQLite.InitSchema)
	assert.Equal(t, EncoderHashing, c.Encoder.Kind)
	assert.Equal(t, 384, c.Encoder.Dim)
	assert.Equal(t, 24*time.Hour, c.Training.MaxAge)
	assert.Equal(t, time.Hour, c.Training.RetryInterval)
	assert.True(t, c.Training.TrainOnStart)
	assert.False(t, c.Redis.Enabled)
	assert.False(t, c.Kafka.Enabled)
	assert.Equal(t, 5, c.RateLimit.TrainRequests)
}

func TestLoad_Postgres(t *testing.T) {
	t.Setenv("DATA_SOURCE", DataSourcePostgres)
	t.Setenv("POSTGRES_USER", "rec")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "shop")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("MODEL_MAX_AGE", "2h")

	c, err := Load(logger.NewNop())
	require.NoError(t, err)

	require.NotNil(t, c.Db)
	assert.Equal(t, "shop", c.Db.DBName)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, c.Training.MaxAge)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown data source", env: map[string]string{"DATA_SOURCE": "mysql"}},
		{name: "unknown encoder", env: map[string]string{"DATA_SOURCE": "sqlite", "ENCODER": "bert"}},
		{name: "bad dim", env: map[string]string{"DATA_SOURCE": "sqlite", "ENCODER_DIM": "0"}},
		{name: "bad duration", env: map[string]string{"DATA_SOURCE": "sqlite", "MODEL_MAX_AGE": "day"}},
		{name: "postgres without user", env: map[string]string{"DATA_SOURCE": "postgres", "POSTGRES_USER": ""}},
		{name: "kafka without postgres", env: map[string]string{
			"DATA_SOURCE": "sqlite", "KAFKA_ENABLED": "true", "KAFKA_BROKERS": "k:9092",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load(logger.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("FLAG", "nope")

	_, err := parseBoolEnv("FLAG", false)
	assert.ErrorIs(t, err, e.ErrIncorrectEnvVariable)

	v, err := parseBoolEnv("MISSING_FLAG", true)
	require.NoError(t, err)
	assert.True(t, v)
}
