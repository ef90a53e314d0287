package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecUC struct {
	similarReq *usecase.SimilarProductsReq
	items      []domain.ScoredProduct
	status     domain.TrainingStatus
}

func (s *stubRecUC) GetSimilarProducts(_ context.Context, req *usecase.SimilarProductsReq) (*usecase.SimilarProductsRes, error) {
	if req.TopK < 1 || req.TopK > usecase.MaxTopK {
		return nil, e.ErrInvalidTopK
	}
	s.similarReq = req
	return &usecase.SimilarProductsRes{ProductID: req.ProductID, Mode: req.Mode, Items: s.items}, nil
}

func (s *stubRecUC) GetUserRecommendations(_ context.Context, req *usecase.UserRecommendationsReq) (*usecase.UserRecommendationsRes, error) {
	if req.UserID <= 0 {
		return nil, e.ErrInvalidID
	}
	return &usecase.UserRecommendationsRes{UserID: req.UserID, Items: []domain.ScoredProduct{}}, nil
}

func (s *stubRecUC) SearchProducts(_ context.Context, req *usecase.SearchReq) (*usecase.SearchRes, error) {
	if req.Query == "" {
		return nil, e.ErrEmptyQuery
	}
	return &usecase.SearchRes{Query: req.Query, Items: s.items}, nil
}

func (s *stubRecUC) GetStatus(context.Context) domain.TrainingStatus {
	return s.status
}

type stubTrainUC struct {
	outcome  domain.TrainOutcome
	families []domain.ModelFamily
}

func (s *stubTrainUC) TrainAsync(families ...domain.ModelFamily) (domain.TrainOutcome, error) {
	for _, f := range families {
		if f != domain.FamilyCollaborative && f != domain.FamilyContent {
			return "", e.ErrInvalidModel
		}
	}
	s.families = families
	return s.outcome, nil
}

func (s *stubTrainUC) TrainSync(_ context.Context, families ...domain.ModelFamily) (domain.TrainOutcome, error) {
	return s.TrainAsync(families...)
}

func (s *stubTrainUC) Status() domain.TrainingStatus {
	return domain.TrainingStatus{IsTraining: s.outcome == domain.TrainInProgress}
}

func newTestRouter(rec *stubRecUC, train *stubTrainUC, limit int) *chi.Mux {
	mux := chi.NewRouter()
	r := NewRouter(mux, &cfg.RateLimitCfg{TrainRequests: limit, TrainWindow: time.Minute}, nil, logger.NewNop())
	r.Init(rec, train)
	return mux
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSimilar_Success(t *testing.T) {
	rec := &stubRecUC{items: []domain.ScoredProduct{{ProductID: 7, Score: 0.123456789}}}
	h := newTestRouter(rec, &stubTrainUC{}, 5)

	resp := do(t, h, http.MethodGet, "/api/v1/recommendations/similar/3?top_k=2&method=content")
	require.Equal(t, http.StatusOK, resp.Code)

	var body SimilarProductsResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, int64(3), body.ProductID)
	assert.Equal(t, "content", body.Method)
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, int64(7), body.Recommendations[0].ProductID)
	assert.InDelta(t, 0.123457, body.Recommendations[0].Score, 1e-9)

	require.NotNil(t, rec.similarReq)
	assert.Equal(t, 2, rec.similarReq.TopK)
	assert.Equal(t, domain.ModeContent, rec.similarReq.Mode)
}

func TestSimilar_Defaults(t *testing.T) {
	rec := &stubRecUC{items: []domain.ScoredProduct{}}
	h := newTestRouter(rec, &stubTrainUC{}, 5)

	resp := do(t, h, http.MethodGet, "/api/v1/recommendations/similar/3")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"product_id":3,"method":"hybrid","recommendations":[]}`, resp.Body.String())
	assert.Equal(t, 5, rec.similarReq.TopK)
}

func TestValidationErrors(t *testing.T) {
	h := newTestRouter(&stubRecUC{}, &stubTrainUC{}, 5)

	tests := []struct {
		name   string
		target string
	}{
		{name: "bad method", target: "/api/v1/recommendations/similar/3?method=magic"},
		{name: "top_k not a number", target: "/api/v1/recommendations/similar/3?top_k=abc"},
		{name: "top_k out of range", target: "/api/v1/recommendations/similar/3?top_k=101"},
		{name: "product id not a number", target: "/api/v1/recommendations/similar/abc"},
		{name: "non-positive user id", target: "/api/v1/recommendations/user/0"},
		{name: "empty query", target: "/api/v1/recommendations/search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, h, http.MethodGet, tt.target)
			assert.Equal(t, http.StatusBadRequest, resp.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
			assert.Equal(t, http.StatusBadRequest, body.Code)
		})
	}
}

func TestSearch_UsesRelevance(t *testing.T) {
	rec := &stubRecUC{items: []domain.ScoredProduct{{ProductID: 1, Score: 0.5}}}
	h := newTestRouter(rec, &stubTrainUC{}, 5)

	resp := do(t, h, http.MethodGet, "/api/v1/recommendations/search?query=wireless+headphones")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"query":"wireless headphones","results":[{"product_id":1,"relevance":0.5}]}`, resp.Body.String())
}

func TestTrain_Async(t *testing.T) {
	train := &stubTrainUC{outcome: domain.TrainStarted}
	h := newTestRouter(&stubRecUC{}, train, 5)

	resp := do(t, h, http.MethodPost, "/api/v1/recommendations/train?models=content")
	require.Equal(t, http.StatusAccepted, resp.Code)
	assert.JSONEq(t, `{"status":"training_started"}`, resp.Body.String())
	assert.Equal(t, []domain.ModelFamily{domain.FamilyContent}, train.families)

	resp = do(t, h, http.MethodPost, "/api/v1/recommendations/train?models=deep")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTrain_SyncInProgress(t *testing.T) {
	h := newTestRouter(&stubRecUC{}, &stubTrainUC{outcome: domain.TrainInProgress}, 5)

	resp := do(t, h, http.MethodPost, "/api/v1/recommendations/train/sync")
	require.Equal(t, http.StatusConflict, resp.Code)

	var body TrainSyncResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, string(domain.TrainInProgress), body.Status)
	assert.True(t, body.Models.IsTraining)
}

func TestTrain_RateLimited(t *testing.T) {
	h := newTestRouter(&stubRecUC{}, &stubTrainUC{outcome: domain.TrainStarted}, 2)

	for range 2 {
		resp := do(t, h, http.MethodPost, "/api/v1/recommendations/train")
		require.Equal(t, http.StatusAccepted, resp.Code)
	}

	resp := do(t, h, http.MethodPost, "/api/v1/recommendations/train")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)

	resp = do(t, h, http.MethodGet, "/api/v1/recommendations/status")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestStatusAndHealth(t *testing.T) {
	last := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &stubRecUC{status: domain.TrainingStatus{
		Collaborative: domain.CollaborativeStatus{Trained: true, NumProducts: 4, NumUsers: 2, LastTrained: &last},
	}}
	h := newTestRouter(rec, &stubTrainUC{}, 5)

	resp := do(t, h, http.MethodGet, "/api/v1/recommendations/status")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{
		"collaborative_filtering": {"trained": true, "num_products": 4, "num_users": 2,
			"last_trained": "2026-01-02T03:04:05Z", "needs_retraining": false},
		"content_based": {"trained": false, "num_products": 0},
		"is_training": false
	}`, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"recommender"}`, resp.Body.String())
}
