package http

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/shopspring/decimal"
)

// ScoredProductResponse — элемент выдачи.
type ScoredProductResponse struct {
	ProductID int64   `json:"product_id"`
	Score     float64 `json:"score"`
}

// SearchResultResponse — найденный товар.
type SearchResultResponse struct {
	ProductID int64   `json:"product_id"`
	Relevance float64 `json:"relevance"`
}

type SimilarProductsResponse struct {
	ProductID       int64                   `json:"product_id"`
	Method          string                  `json:"method"`
	Recommendations []ScoredProductResponse `json:"recommendations"`
}

type UserRecommendationsResponse struct {
	UserID          int64                   `json:"user_id"`
	Recommendations []ScoredProductResponse `json:"recommendations"`
}

type SearchResponse struct {
	Query   string                 `json:"query"`
	Results []SearchResultResponse `json:"results"`
}

type TrainResponse struct {
	Status string `json:"status"`
}

type CollaborativeStatusResponse struct {
	Trained         bool       `json:"trained"`
	NumProducts     int        `json:"num_products"`
	NumUsers        int        `json:"num_users"`
	LastTrained     *time.Time `json:"last_trained"`
	NeedsRetraining bool       `json:"needs_retraining"`
}

type ContentStatusResponse struct {
	Trained     bool       `json:"trained"`
	NumProducts int        `json:"num_products"`
	BuiltAt     *time.Time `json:"built_at,omitempty"`
}

type StatusResponse struct {
	CollaborativeFiltering CollaborativeStatusResponse `json:"collaborative_filtering"`
	ContentBased           ContentStatusResponse       `json:"content_based"`
	IsTraining             bool                        `json:"is_training"`
}

type TrainSyncResponse struct {
	Status string         `json:"status"`
	Models StatusResponse `json:"models"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// roundScore округляет оценку до scorePlaces знаков после запятой.
func roundScore(v float64) float64 {
	return decimal.NewFromFloat(v).Round(scorePlaces).InexactFloat64()
}

func toScoredResponse(items []domain.ScoredProduct) []ScoredProductResponse {
	out := make([]ScoredProductResponse, len(items))
	for i, it := range items {
		out[i] = ScoredProductResponse{ProductID: it.ProductID, Score: roundScore(it.Score)}
	}
	return out
}

func toSearchResponse(res *usecase.SearchRes) SearchResponse {
	results := make([]SearchResultResponse, len(res.Items))
	for i, it := range res.Items {
		results[i] = SearchResultResponse{ProductID: it.ProductID, Relevance: roundScore(it.Score)}
	}
	return SearchResponse{Query: res.Query, Results: results}
}

func toStatusResponse(s domain.TrainingStatus) StatusResponse {
	return StatusResponse{
		CollaborativeFiltering: CollaborativeStatusResponse{
			Trained:         s.Collaborative.Trained,
			NumProducts:     s.Collaborative.NumProducts,
			NumUsers:        s.Collaborative.NumUsers,
			LastTrained:     s.Collaborative.LastTrained,
			NeedsRetraining: s.Collaborative.NeedsRetraining,
		},
		ContentBased: ContentStatusResponse{
			Trained:     s.Content.Trained,
			NumProducts: s.Content.NumProducts,
			BuiltAt:     s.Content.BuiltAt,
		},
		IsTraining: s.IsTraining,
	}
}
