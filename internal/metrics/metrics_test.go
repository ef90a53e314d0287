package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Training(t *testing.T) {
	c := NewCollector()

	c.ObserveTraining("collaborative", "succeeded", 2*time.Second)
	c.ObserveTraining("collaborative", "failed", time.Second)
	c.ObserveTraining("collaborative", "succeeded", time.Second)
	c.SetTrainingActive("content", true)
	c.SetSnapshotSize("content", 42)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.trainingRuns.WithLabelValues("collaborative", "succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trainingRuns.WithLabelValues("collaborative", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.trainingActive.WithLabelValues("content")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.snapshotProducts.WithLabelValues("content")))

	c.SetTrainingActive("content", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.trainingActive.WithLabelValues("content")))
}

func TestCollector_QueriesAndCache(t *testing.T) {
	c := NewCollector()

	c.ObserveQuery("similar", "hybrid", time.Millisecond, 3)
	c.ObserveQuery("similar", "hybrid", time.Millisecond, 0)
	c.CacheResult(true)
	c.CacheResult(false)
	c.CacheResult(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queries.WithLabelValues("similar", "hybrid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.emptyResults.WithLabelValues("similar")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.CacheResult(true)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `recommender_ranking_cache_lookups_total{result="hit"} 1`))
}
