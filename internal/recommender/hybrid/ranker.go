// Package hybrid объединяет коллаборативную и контентную выдачу.
package hybrid

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/recommender/rank"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
)

// Веса слияния фиксированы.
const (
	CollaborativeWeight = 0.6
	ContentWeight       = 0.4

	// candidateFactor — во сколько раз больше кандидатов запрашивается у каждой модели.
	candidateFactor = 2
)

// CollaborativeSource — похожие товары по совместным покупкам.
type CollaborativeSource interface {
	SimilarItems(productID int64, k int) []domain.ScoredProduct
}

// ContentSource — похожие товары по текстовому профилю.
type ContentSource interface {
	SimilarItems(ctx context.Context, productID int64, k int) ([]domain.ScoredProduct, error)
}

// Ranker выдаёт похожие товары в выбранном режиме.
type Ranker struct {
	collaborative CollaborativeSource
	content       ContentSource
	logger        logger.Logger
}

func NewRanker(collaborative CollaborativeSource, content ContentSource, logger logger.Logger) *Ranker {
	return &Ranker{collaborative: collaborative, content: content, logger: logger}
}

// Similar возвращает k товаров, похожих на productID.
// В гибридном режиме сбой контентной модели не обнуляет выдачу: остаётся коллаборативная часть.
func (r *Ranker) Similar(ctx context.Context, productID int64, k int, mode domain.Mode) ([]domain.ScoredProduct, error) {
	const op = "hybrid.Ranker.Similar"

	switch mode {
	case domain.ModeCollaborative:
		return r.collaborative.SimilarItems(productID, k), nil
	case domain.ModeContent:
		items, err := r.content.SimilarItems(ctx, productID, k)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
		return items, nil
	case domain.ModeHybrid:
		collab := r.collaborative.SimilarItems(productID, candidateFactor*k)
		content, err := r.content.SimilarItems(ctx, productID, candidateFactor*k)
		if err != nil {
			r.logger.Warnf("%s: product=%d: content side failed, using collaborative only: %v", op, productID, err)
			content = nil
		}
		return Fuse(collab, content, k), nil
	default:
		return nil, e.Wrap(op, fmt.Errorf("%w: %s", e.ErrInvalidMode, mode))
	}
}

// Fuse складывает взвешенные оценки по product id (отсутствующая оценка равна нулю),
// сортирует по убыванию с меньшим id при равенстве и оставляет k лучших.
func Fuse(collaborative, content []domain.ScoredProduct, k int) []domain.ScoredProduct {
	if k <= 0 {
		return []domain.ScoredProduct{}
	}

	combined := make(map[int64]float64, len(collaborative)+len(content))
	for _, it := range collaborative {
		combined[it.ProductID] += CollaborativeWeight * it.Score
	}
	for _, it := range content {
		combined[it.ProductID] += ContentWeight * it.Score
	}

	out := make([]domain.ScoredProduct, 0, len(combined))
	for id, score := range combined {
		out = append(out, domain.ScoredProduct{ProductID: id, Score: score})
	}

	rank.Sort(out)
	if len(out) > k {
		out = out[:k]
	}
	return out
}
