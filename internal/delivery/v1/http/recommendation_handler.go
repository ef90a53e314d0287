package http

import (
	"net/http"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/usecase"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/go-chi/chi/v5"
)

const (
	defaultSimilarTopK = 5
	defaultUserTopK    = 10
	defaultSearchTopK  = 10
)

type RecommendationHandler struct {
	recUsecase   usecase.RecommendationUC
	trainUsecase usecase.TrainingUC
	logger       logger.Logger
}

func NewRecommendationHandler(recUsecase usecase.RecommendationUC, trainUsecase usecase.TrainingUC, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{recUsecase: recUsecase, trainUsecase: trainUsecase, logger: logger}
}

// train
//
//	@Summary		Запуск обучения
//	@Description	Запускает обучение в фоне и сразу возвращает ответ
//	@Tags			recommendations
//	@Produce		json
//	@Param			models	query		string			false	"Семейства моделей через запятую: collaborative,content"
//	@Success		202		{object}	TrainResponse	"training_started или training_in_progress"
//	@Failure		400		{object}	ErrorResponse	"Неизвестное семейство моделей"
//	@Failure		429		{string}	string			"Слишком много запросов"
//	@Router			/recommendations/train [post]
func (h *RecommendationHandler) train(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.trainUsecase.TrainAsync(parseFamilies(r.URL.Query().Get("models"))...)
	if err != nil {
		h.logger.Warnf("%d train: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusAccepted, TrainResponse{Status: string(outcome)})
}

// trainSync
//
//	@Summary		Синхронное обучение
//	@Description	Обучает модели в рамках запроса и возвращает их состояние
//	@Tags			recommendations
//	@Produce		json
//	@Param			models	query		string				false	"Семейства моделей через запятую: collaborative,content"
//	@Success		200		{object}	TrainSyncResponse	"Обучение завершено"
//	@Failure		400		{object}	ErrorResponse		"Неизвестное семейство моделей"
//	@Failure		409		{object}	TrainSyncResponse	"Обучение уже идёт"
//	@Router			/recommendations/train/sync [post]
func (h *RecommendationHandler) trainSync(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.trainUsecase.TrainSync(r.Context(), parseFamilies(r.URL.Query().Get("models"))...)
	if err != nil {
		h.logger.Errorf(err, "train sync failed")
		WriteError(w, err)
		return
	}

	status := http.StatusOK
	if outcome == domain.TrainInProgress {
		status = http.StatusConflict
	}

	WriteSuccess(w, status, TrainSyncResponse{
		Status: string(outcome),
		Models: toStatusResponse(h.trainUsecase.Status()),
	})
}

// similar
//
//	@Summary		Похожие товары
//	@Description	Возвращает товары, похожие на заданный, по методу collaborative, content или hybrid
//	@Tags			recommendations
//	@Produce		json
//	@Param			product_id	path		int						true	"ID товара"
//	@Param			top_k		query		int						false	"Размер выдачи (1..100)"	default(5)
//	@Param			method		query		string					false	"collaborative | content | hybrid"	default(hybrid)
//	@Success		200			{object}	SimilarProductsResponse	"Выдача, возможно пустая"
//	@Failure		400			{object}	ErrorResponse			"Ошибка валидации"
//	@Router			/recommendations/similar/{product_id} [get]
func (h *RecommendationHandler) similar(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(chi.URLParam(r, "product_id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	topK, err := parseTopK(r, defaultSimilarTopK)
	if err != nil {
		WriteError(w, err)
		return
	}

	mode, err := domain.ParseMode(r.URL.Query().Get("method"))
	if err != nil {
		h.logger.Warnf("%d similar: %v", http.StatusBadRequest, err)
		WriteError(w, err)
		return
	}

	res, err := h.recUsecase.GetSimilarProducts(r.Context(), usecase.NewSimilarProductsReq(productID, topK, mode))
	if err != nil {
		h.logger.Warnf("similar: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, SimilarProductsResponse{
		ProductID:       res.ProductID,
		Method:          res.Mode.String(),
		Recommendations: toScoredResponse(res.Items),
	})
}

// user
//
//	@Summary		Персональные рекомендации
//	@Description	Рекомендации для пользователя без уже купленных товаров
//	@Tags			recommendations
//	@Produce		json
//	@Param			user_id	path		int							true	"ID пользователя"
//	@Param			top_k	query		int							false	"Размер выдачи (1..100)"	default(10)
//	@Success		200		{object}	UserRecommendationsResponse	"Выдача, возможно пустая"
//	@Failure		400		{object}	ErrorResponse				"Ошибка валидации"
//	@Router			/recommendations/user/{user_id} [get]
func (h *RecommendationHandler) user(w http.ResponseWriter, r *http.Request) {
	userID, err := parseID(chi.URLParam(r, "user_id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	topK, err := parseTopK(r, defaultUserTopK)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.recUsecase.GetUserRecommendations(r.Context(), usecase.NewUserRecommendationsReq(userID, topK))
	if err != nil {
		h.logger.Warnf("user: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, UserRecommendationsResponse{
		UserID:          res.UserID,
		Recommendations: toScoredResponse(res.Items),
	})
}

// search
//
//	@Summary		Семантический поиск
//	@Description	Ищет товары по текстовому запросу, например "affordable wireless headphones"
//	@Tags			recommendations
//	@Produce		json
//	@Param			query	query		string			true	"Текст запроса"
//	@Param			top_k	query		int				false	"Размер выдачи (1..100)"	default(10)
//	@Success		200		{object}	SearchResponse	"Результаты, возможно пустые"
//	@Failure		400		{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/recommendations/search [get]
func (h *RecommendationHandler) search(w http.ResponseWriter, r *http.Request) {
	topK, err := parseTopK(r, defaultSearchTopK)
	if err != nil {
		WriteError(w, err)
		return
	}

	res, err := h.recUsecase.SearchProducts(r.Context(), usecase.NewSearchReq(r.URL.Query().Get("query"), topK))
	if err != nil {
		h.logger.Warnf("search: %v", err)
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// status
//
//	@Summary		Состояние моделей
//	@Tags			recommendations
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/recommendations/status [get]
func (h *RecommendationHandler) status(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, http.StatusOK, toStatusResponse(h.recUsecase.GetStatus(r.Context())))
}

// health
//
//	@Summary	Проверка живости
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, HealthResponse{Status: "healthy", Service: "recommender"})
}
