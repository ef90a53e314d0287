package usecase

import (
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/google/uuid"
)

// MaxTopK — верхняя граница размера выдачи.
const MaxTopK = 100

// RECOMMENDATION USECASE

// SimilarProductsReq — запрос похожих товаров.
type SimilarProductsReq struct {
	ProductID int64
	TopK      int
	Mode      domain.Mode
}

// SimilarProductsRes — похожие товары.
type SimilarProductsRes struct {
	ProductID int64
	Mode      domain.Mode
	Items     []domain.ScoredProduct
}

// UserRecommendationsReq — запрос персональных рекомендаций.
type UserRecommendationsReq struct {
	UserID int64
	TopK   int
}

// UserRecommendationsRes — персональные рекомендации.
type UserRecommendationsRes struct {
	UserID int64
	Items  []domain.ScoredProduct
}

// SearchReq — текстовый поиск по товарам.
type SearchReq struct {
	Query string
	TopK  int
}

// SearchRes — найденные товары, Score означает релевантность.
type SearchRes struct {
	Query string
	Items []domain.ScoredProduct
}

// OUTBOX

// OutboxStatus — состояние события в outbox.
type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
	Failed     OutboxStatus = "failed" // повторная отправка не поможет
)

// OutboxEvent — сохранённое событие outbox. Payload хранится в JSON.
type OutboxEvent struct {
	ID          int64
	EventID     uuid.UUID
	EventType   string
	AggregateID string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// MAPPERS

func NewSimilarProductsReq(productID int64, topK int, mode domain.Mode) *SimilarProductsReq {
	return &SimilarProductsReq{ProductID: productID, TopK: topK, Mode: mode}
}

func NewUserRecommendationsReq(userID int64, topK int) *UserRecommendationsReq {
	return &UserRecommendationsReq{UserID: userID, TopK: topK}
}

func NewSearchReq(query string, topK int) *SearchReq {
	return &SearchReq{Query: query, TopK: topK}
}
