package hybrid

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedCollab struct {
	items []domain.ScoredProduct
	gotK  int
}

func (f *fixedCollab) SimilarItems(_ int64, k int) []domain.ScoredProduct {
	f.gotK = k
	return f.items
}

type fixedContent struct {
	items []domain.ScoredProduct
	err   error
	gotK  int
}

func (f *fixedContent) SimilarItems(_ context.Context, _ int64, k int) ([]domain.ScoredProduct, error) {
	f.gotK = k
	return f.items, f.err
}

func TestRanker_WeightedFusion(t *testing.T) {
	collab := &fixedCollab{items: []domain.ScoredProduct{{ProductID: 5, Score: 0.9}, {ProductID: 6, Score: 0.4}}}
	content := &fixedContent{items: []domain.ScoredProduct{{ProductID: 6, Score: 0.8}, {ProductID: 7, Score: 0.5}}}

	got, err := NewRanker(collab, content, logger.NewNop()).Similar(context.Background(), 1, 2, domain.ModeHybrid)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(6), got[0].ProductID)
	assert.InDelta(t, 0.56, got[0].Score, 1e-9)
	assert.Equal(t, int64(5), got[1].ProductID)
	assert.InDelta(t, 0.54, got[1].Score, 1e-9)

	assert.Equal(t, 4, collab.gotK)
	assert.Equal(t, 4, content.gotK)
}

func TestFuse_TieBreakLowerID(t *testing.T) {
	got := Fuse(
		[]domain.ScoredProduct{{ProductID: 9, Score: 0.5}, {ProductID: 4, Score: 0.5}},
		[]domain.ScoredProduct{{ProductID: 4, Score: 0.25}, {ProductID: 9, Score: 0.25}},
		5,
	)
	require.Len(t, got, 2)
	assert.Equal(t, int64(4), got[0].ProductID)
	assert.Equal(t, int64(9), got[1].ProductID)
}

func TestRanker_SingleModes(t *testing.T) {
	collab := &fixedCollab{items: []domain.ScoredProduct{{ProductID: 2, Score: 0.3}}}
	content := &fixedContent{items: []domain.ScoredProduct{{ProductID: 3, Score: 0.7}}}
	r := NewRanker(collab, content, logger.NewNop())

	got, err := r.Similar(context.Background(), 1, 5, domain.ModeCollaborative)
	require.NoError(t, err)
	assert.Equal(t, collab.items, got)
	assert.Equal(t, 5, collab.gotK)

	got, err = r.Similar(context.Background(), 1, 5, domain.ModeContent)
	require.NoError(t, err)
	assert.Equal(t, content.items, got)
}

func TestRanker_InvalidModeAndContentError(t *testing.T) {
	r := NewRanker(&fixedCollab{}, &fixedContent{err: errors.New("qdrant down")}, logger.NewNop())

	_, err := r.Similar(context.Background(), 1, 5, domain.Mode(42))
	assert.ErrorIs(t, err, e.ErrInvalidMode)

	_, err = r.Similar(context.Background(), 1, 5, domain.ModeContent)
	require.Error(t, err)
	assert.NotErrorIs(t, err, e.ErrInvalidMode)
}

func TestRanker_HybridFallsBackToCollaborative(t *testing.T) {
	collab := &fixedCollab{items: []domain.ScoredProduct{{ProductID: 5, Score: 0.9}, {ProductID: 6, Score: 0.4}, {ProductID: 7, Score: 0.2}}}
	r := NewRanker(collab, &fixedContent{err: errors.New("qdrant down")}, logger.NewNop())

	got, err := r.Similar(context.Background(), 1, 2, domain.ModeHybrid)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(5), got[0].ProductID)
	assert.InDelta(t, CollaborativeWeight*0.9, got[0].Score, 1e-9)
	assert.Equal(t, int64(6), got[1].ProductID)
	assert.InDelta(t, CollaborativeWeight*0.4, got[1].Score, 1e-9)
}
