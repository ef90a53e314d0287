package http

import (
	"net/http"

	_ "github.com/DRSN-tech/recommender/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/recommender/internal/cfg"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router  *chi.Mux
	logger  logger.Logger
	limits  *cfg.RateLimitCfg
	metrics http.Handler
}

func NewRouter(router *chi.Mux, limits *cfg.RateLimitCfg, metrics http.Handler, logger logger.Logger) *Router {
	return &Router{router: router, limits: limits, metrics: metrics, logger: logger}
}

func (r *Router) Init(recUC usecase.RecommendationUC, trainUC usecase.TrainingUC) {
	r.router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.router.Get("/health", health)
	if r.metrics != nil {
		r.router.Handle("/metrics", r.metrics)
	}

	r.router.Route("/api/v1", func(v1 chi.Router) {
		recHandler := NewRecommendationHandler(recUC, trainUC, r.logger)
		registerRecommendationRoutes(v1, recHandler, r.limits)
	})
}

func registerRecommendationRoutes(router chi.Router, h *RecommendationHandler, limits *cfg.RateLimitCfg) {
	router.Route("/recommendations", func(rec chi.Router) {
		rec.Group(func(train chi.Router) {
			train.Use(httprate.LimitByIP(limits.TrainRequests, limits.TrainWindow))
			train.Post("/train", h.train)
			train.Post("/train/sync", h.trainSync)
		})

		rec.Get("/similar/{product_id}", h.similar)
		rec.Get("/user/{user_id}", h.user)
		rec.Get("/search", h.search)
		rec.Get("/status", h.status)
		rec.Get("/health", health)
	})
}
