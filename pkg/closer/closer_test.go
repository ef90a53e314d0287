package closer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloser_LIFOOrder(t *testing.T) {
	c := NewCloser(0)
	var order []string
	c.AddFunc("db", func() { order = append(order, "db") })
	c.AddFunc("redis", func() { order = append(order, "redis") })
	c.AddErrFunc("http", func() error { order = append(order, "http"); return nil })

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"http", "redis", "db"}, order)
}

func TestCloser_CollectsErrorsAndRunsOnce(t *testing.T) {
	c := NewCloser(0)
	calls := 0
	c.AddErrFunc("qdrant", func() error { calls++; return errors.New("refused") })

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qdrant: refused")

	assert.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestCloser_ForcedAfterTimeout(t *testing.T) {
	c := NewCloser(50 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	var hungCalls atomic.Int32
	c.AddFunc("first", func() {})
	c.Add("hung", func(ctx context.Context) error {
		if hungCalls.Add(1) == 1 {
			<-release
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown interrupted")
	assert.Equal(t, int32(2), hungCalls.Load())
}
