package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/cespare/xxhash/v2"
)

// SimilarRanker выдаёт похожие товары в заданном режиме.
type SimilarRanker interface {
	Similar(ctx context.Context, productID int64, k int, mode domain.Mode) ([]domain.ScoredProduct, error)
}

// Trainer — часть оркестратора, нужная для ленивого переобучения.
type Trainer interface {
	TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error)
	DueFamilies() []domain.ModelFamily
	Status() domain.TrainingStatus
}

// RecommendationUseCase обслуживает запросы на чтение поверх текущих снимков.
// Ошибки моделей не выходят наружу: запрос получает пустую выдачу.
type RecommendationUseCase struct {
	collab  CollaborativeModel
	content ContentModel
	ranker  SimilarRanker
	trainer Trainer
	cache   RankingCache
	metrics Metrics
	logger  logger.Logger
}

func NewRecommendationUC(
	collab CollaborativeModel,
	content ContentModel,
	ranker SimilarRanker,
	trainer Trainer,
	cache RankingCache,
	metrics Metrics,
	logger logger.Logger,
) *RecommendationUseCase {
	return &RecommendationUseCase{
		collab:  collab,
		content: content,
		ranker:  ranker,
		trainer: trainer,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// GetSimilarProducts возвращает товары, похожие на заданный.
func (r *RecommendationUseCase) GetSimilarProducts(ctx context.Context, req *SimilarProductsReq) (*SimilarProductsRes, error) {
	const op = "RecommendationUseCase.GetSimilarProducts"

	if err := validateID(req.ProductID); err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := validateTopK(req.TopK); err != nil {
		return nil, e.Wrap(op, err)
	}

	r.retrainIfStale()

	start := time.Now()
	key := ""
	if cv, tv := r.collab.Version(), r.content.Version(); cv != "" || tv != "" {
		key = fmt.Sprintf("similar:%s:%d:%d:%s:%s", req.Mode, req.ProductID, req.TopK, cv, tv)
	}

	items, err := r.cached(ctx, key, func() ([]domain.ScoredProduct, error) {
		return r.ranker.Similar(ctx, req.ProductID, req.TopK, req.Mode)
	})
	if err != nil {
		if errors.Is(err, e.ErrInvalidMode) {
			return nil, e.Wrap(op, err)
		}
		r.logger.Warnf("%s: product=%d mode=%s: %v", op, req.ProductID, req.Mode, err)
	}
	items = orEmpty(items)

	r.metrics.ObserveQuery("similar", req.Mode.String(), time.Since(start), len(items))
	return &SimilarProductsRes{ProductID: req.ProductID, Mode: req.Mode, Items: items}, nil
}

// GetUserRecommendations возвращает персональные рекомендации без уже купленных товаров.
func (r *RecommendationUseCase) GetUserRecommendations(ctx context.Context, req *UserRecommendationsReq) (*UserRecommendationsRes, error) {
	const op = "RecommendationUseCase.GetUserRecommendations"

	if err := validateID(req.UserID); err != nil {
		return nil, e.Wrap(op, err)
	}
	if err := validateTopK(req.TopK); err != nil {
		return nil, e.Wrap(op, err)
	}

	r.retrainIfStale()

	start := time.Now()
	key := ""
	if v := r.collab.Version(); v != "" {
		key = fmt.Sprintf("user:%d:%d:%s", req.UserID, req.TopK, v)
	}

	items, err := r.cached(ctx, key, func() ([]domain.ScoredProduct, error) {
		return r.collab.UserRecommendations(req.UserID, req.TopK, true), nil
	})
	if err != nil {
		r.logger.Warnf("%s: user=%d: %v", op, req.UserID, err)
	}
	items = orEmpty(items)

	r.metrics.ObserveQuery("user", domain.ModeCollaborative.String(), time.Since(start), len(items))
	return &UserRecommendationsRes{UserID: req.UserID, Items: items}, nil
}

// SearchProducts ищет товары по свободному тексту. Если контентная модель не обучена,
// запускается фоновое обучение, а запрос получает пустую выдачу.
func (r *RecommendationUseCase) SearchProducts(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "RecommendationUseCase.SearchProducts"

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, e.Wrap(op, e.ErrEmptyQuery)
	}
	if err := validateTopK(req.TopK); err != nil {
		return nil, e.Wrap(op, err)
	}

	r.retrainIfStale()

	start := time.Now()
	key := ""
	if v := r.content.Version(); v != "" {
		key = fmt.Sprintf("search:%016x:%d:%s", xxhash.Sum64String(strings.ToLower(query)), req.TopK, v)
	}

	items, err := r.cached(ctx, key, func() ([]domain.ScoredProduct, error) {
		return r.content.Search(ctx, query, req.TopK)
	})
	if err != nil {
		r.logger.Warnf("%s: query=%q: %v", op, query, err)
	}
	items = orEmpty(items)

	r.metrics.ObserveQuery("search", domain.ModeContent.String(), time.Since(start), len(items))
	return &SearchRes{Query: req.Query, Items: items}, nil
}

// GetStatus — сводный отчёт о моделях.
func (r *RecommendationUseCase) GetStatus(_ context.Context) domain.TrainingStatus {
	return r.trainer.Status()
}

// retrainIfStale ставит фоновое обучение семейств, у которых снимок устарел или отсутствует.
func (r *RecommendationUseCase) retrainIfStale() {
	families := r.trainer.DueFamilies()
	if len(families) == 0 {
		return
	}

	outcome, err := r.trainer.TrainAsync(families...)
	if err != nil {
		r.logger.Warnf("failed to schedule retraining of %v: %v", families, err)
		return
	}
	if outcome == domain.TrainStarted {
		r.logger.Infof("models %v need retraining, background training started", families)
	}
}

// cached читает выдачу из кэша по key или вычисляет и сохраняет её. Пустой key отключает кэш.
func (r *RecommendationUseCase) cached(
	ctx context.Context,
	key string,
	compute func() ([]domain.ScoredProduct, error),
) ([]domain.ScoredProduct, error) {
	if key == "" || r.cache == nil {
		return compute()
	}

	items, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		r.metrics.CacheResult(true)
		return items, nil
	case !errors.Is(err, e.ErrCacheMiss):
		r.logger.Warnf("ranking cache read failed, key=%s: %v", key, err)
	}
	r.metrics.CacheResult(false)

	items, err = compute()
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, items); err != nil {
		r.logger.Warnf("ranking cache write failed, key=%s: %v", key, err)
	}
	return items, nil
}

func validateTopK(k int) error {
	if k < 1 || k > MaxTopK {
		return e.ErrInvalidTopK
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return e.ErrInvalidID
	}
	return nil
}

func orEmpty(items []domain.ScoredProduct) []domain.ScoredProduct {
	if items == nil {
		return []domain.ScoredProduct{}
	}
	return items
}
