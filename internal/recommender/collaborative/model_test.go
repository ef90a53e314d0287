package collaborative

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu   sync.Mutex
	rows []domain.Interaction
	err  error
}

func (s *stubSource) Interactions(context.Context) ([]domain.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows, s.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

// u1: p1=2 p2=1; u2: p1=1 p3=3
func twoBuyers() []domain.Interaction {
	return []domain.Interaction{
		{UserID: 1, ProductID: 1, Strength: 2},
		{UserID: 1, ProductID: 2, Strength: 1},
		{UserID: 2, ProductID: 1, Strength: 1},
		{UserID: 2, ProductID: 3, Strength: 3},
	}
}

func newTrained(t *testing.T, rows []domain.Interaction) *Model {
	t.Helper()
	m := NewModel(&stubSource{rows: rows}, logger.NewNop())
	_, err := m.Fit(context.Background())
	require.NoError(t, err)
	return m
}

func TestFit_SymmetricZeroDiagonal(t *testing.T) {
	rows := append(twoBuyers(),
		domain.Interaction{UserID: 3, ProductID: 2, Strength: 5},
		domain.Interaction{UserID: 3, ProductID: 4, Strength: 1},
		domain.Interaction{UserID: 4, ProductID: 4, Strength: 2},
		domain.Interaction{UserID: 4, ProductID: 1, Strength: 7},
	)
	snap := newTrained(t, rows).Snapshot()
	require.NotNil(t, snap)

	ids := snap.Products().IDs()
	for _, a := range ids {
		for _, b := range ids {
			ab, _ := snap.Similarity(a, b)
			ba, _ := snap.Similarity(b, a)
			assert.Equal(t, ab, ba, "sim(%d,%d)", a, b)
		}
		self, ok := snap.Similarity(a, a)
		require.True(t, ok)
		assert.Equal(t, 0.0, self)
	}
}

func TestSimilarItems_SharedBuyerOverlap(t *testing.T) {
	m := newTrained(t, twoBuyers())

	got := m.SimilarItems(1, 5)
	require.Len(t, got, 2)

	assert.Equal(t, int64(2), got[0].ProductID)
	assert.InDelta(t, 2/math.Sqrt(5), got[0].Score, 1e-9)
	assert.Equal(t, int64(3), got[1].ProductID)
	assert.InDelta(t, 1/math.Sqrt(5), got[1].Score, 1e-9)

	for _, p := range []int64{1, 2, 3} {
		for _, r := range m.SimilarItems(p, 5) {
			assert.NotEqual(t, p, r.ProductID)
			assert.Greater(t, r.Score, 0.0)
		}
	}

	// p2 и p3 не имеют общих покупателей
	for _, r := range m.SimilarItems(2, 5) {
		assert.NotEqual(t, int64(3), r.ProductID)
	}
}

func TestSimilarItems_TieBreakLowerID(t *testing.T) {
	// p5 и p9 куплены теми же пользователями, что и p1, в одинаковых количествах
	m := newTrained(t, []domain.Interaction{
		{UserID: 1, ProductID: 1, Strength: 1},
		{UserID: 1, ProductID: 9, Strength: 1},
		{UserID: 1, ProductID: 5, Strength: 1},
	})

	got := m.SimilarItems(1, 1)
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0].ProductID)
}

func TestSimilarItems_UnknownProductAndUntrained(t *testing.T) {
	untrained := NewModel(&stubSource{}, logger.NewNop())
	assert.Empty(t, untrained.SimilarItems(1, 5))
	assert.Empty(t, untrained.UserRecommendations(1, 5, true))

	m := newTrained(t, twoBuyers())
	assert.Empty(t, m.SimilarItems(42, 5))
	assert.Empty(t, m.UserRecommendations(42, 5, true))
}

func TestUserRecommendations_ExcludesPurchased(t *testing.T) {
	m := newTrained(t, twoBuyers())

	got := m.UserRecommendations(1, 10, true)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ProductID)
	// S·u1 для p3: sim(p3,p1)*2 + sim(p3,p2)*1
	assert.InDelta(t, 2/math.Sqrt(5), got[0].Score, 1e-9)

	all := m.UserRecommendations(1, 10, false)
	ids := make([]int64, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ProductID)
	}
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}

func TestUserRecommendations_NeverReturnsPurchased(t *testing.T) {
	rows := append(twoBuyers(),
		domain.Interaction{UserID: 3, ProductID: 2, Strength: 1},
		domain.Interaction{UserID: 3, ProductID: 3, Strength: 1},
		domain.Interaction{UserID: 3, ProductID: 4, Strength: 2},
	)
	m := newTrained(t, rows)

	purchased := map[int64]map[int64]bool{}
	for _, r := range rows {
		if purchased[r.UserID] == nil {
			purchased[r.UserID] = map[int64]bool{}
		}
		purchased[r.UserID][r.ProductID] = true
	}

	for user, bought := range purchased {
		for _, r := range m.UserRecommendations(user, 10, true) {
			assert.False(t, bought[r.ProductID], "user %d got purchased product %d", user, r.ProductID)
		}
	}
}

func TestFit_Idempotent(t *testing.T) {
	src := &stubSource{rows: twoBuyers()}
	m := NewModel(src, logger.NewNop())

	_, err := m.Fit(context.Background())
	require.NoError(t, err)
	first := m.Snapshot()

	_, err = m.Fit(context.Background())
	require.NoError(t, err)
	second := m.Snapshot()

	require.NotSame(t, first, second)
	for _, a := range first.Products().IDs() {
		for _, b := range first.Products().IDs() {
			x, _ := first.Similarity(a, b)
			y, _ := second.Similarity(a, b)
			assert.Equal(t, x, y)
		}
	}
	assert.Equal(t, m.SimilarItems(1, 5), m.SimilarItems(1, 5))
}

func TestFit_NoCompletedOrders(t *testing.T) {
	m := NewModel(&stubSource{}, logger.NewNop())

	report, err := m.Fit(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	status := m.Status(DefaultMaxAge)
	assert.False(t, status.Trained)
	assert.True(t, status.NeedsRetraining)
	assert.Nil(t, status.LastTrained)
}

func TestFit_UpstreamFailureKeepsSnapshot(t *testing.T) {
	src := &stubSource{rows: twoBuyers()}
	m := NewModel(src, logger.NewNop())
	_, err := m.Fit(context.Background())
	require.NoError(t, err)
	before := m.Snapshot()

	src.mu.Lock()
	src.err = errors.New("connection refused")
	src.mu.Unlock()

	_, err = m.Fit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrUpstreamUnavailable)
	assert.Same(t, before, m.Snapshot())
	assert.NotEmpty(t, m.SimilarItems(1, 5))
}

func TestNeedsRetraining_AgeWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewModel(&stubSource{rows: twoBuyers()}, logger.NewNop(), WithClock(clock.Now))

	assert.True(t, m.NeedsRetraining(DefaultMaxAge))

	_, err := m.Fit(context.Background())
	require.NoError(t, err)
	assert.False(t, m.NeedsRetraining(DefaultMaxAge))

	clock.t = clock.t.Add(24 * time.Hour)
	assert.False(t, m.NeedsRetraining(DefaultMaxAge))

	clock.t = clock.t.Add(time.Second)
	assert.True(t, m.NeedsRetraining(DefaultMaxAge))
	assert.True(t, m.Status(DefaultMaxAge).NeedsRetraining)
}

func TestBuildMatrix_SumsDuplicatesAndSorts(t *testing.T) {
	m := BuildMatrix([]domain.Interaction{
		{UserID: 7, ProductID: 20, Strength: 1},
		{UserID: 3, ProductID: 10, Strength: 2},
		{UserID: 7, ProductID: 20, Strength: 4},
		{UserID: 3, ProductID: 30, Strength: -1},
	})

	assert.Equal(t, []int64{3, 7}, m.Users.IDs())
	assert.Equal(t, []int64{10, 20}, m.Products.IDs())

	r, c := m.Data.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 2.0, m.Data.At(0, 0))
	assert.Equal(t, 5.0, m.Data.At(1, 1))
	assert.Equal(t, 0.0, m.Data.At(0, 1))
}
