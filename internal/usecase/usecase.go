package usecase

import (
	"context"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// TrainingUC управляет проходами обучения.
type TrainingUC interface {
	TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error)
	TrainSync(ctx context.Context, families ...domain.ModelFamily) (domain.TrainOutcome, error)
	Status() domain.TrainingStatus
}

// RecommendationUC отвечает на запросы рекомендаций.
type RecommendationUC interface {
	GetSimilarProducts(ctx context.Context, req *SimilarProductsReq) (*SimilarProductsRes, error)
	GetUserRecommendations(ctx context.Context, req *UserRecommendationsReq) (*UserRecommendationsRes, error)
	SearchProducts(ctx context.Context, req *SearchReq) (*SearchRes, error)
	GetStatus(ctx context.Context) domain.TrainingStatus
}
