package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/goccy/go-json"
)

// scorePlaces — точность оценок в ответах API.
const scorePlaces = 6

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrInvalidMode):
		return http.StatusBadRequest, e.ErrInvalidMode.Error()
	case errors.Is(err, e.ErrInvalidTopK):
		return http.StatusBadRequest, e.ErrInvalidTopK.Error()
	case errors.Is(err, e.ErrInvalidID):
		return http.StatusBadRequest, e.ErrInvalidID.Error()
	case errors.Is(err, e.ErrEmptyQuery):
		return http.StatusBadRequest, e.ErrEmptyQuery.Error()
	case errors.Is(err, e.ErrInvalidModel):
		return http.StatusBadRequest, e.ErrInvalidModel.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrTrainingInProgress):
		return http.StatusConflict, e.ErrTrainingInProgress.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteSuccess(w, code, NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// parseTopK читает top_k из query-параметров; отсутствие даёт значение по умолчанию.
func parseTopK(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("top_k")
	if raw == "" {
		return def, nil
	}

	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, e.ErrInvalidTopK
	}
	return k, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, e.ErrInvalidID
	}
	return id, nil
}

// parseFamilies разбирает параметр models=collaborative,content. Пустое значение — все семейства.
func parseFamilies(raw string) []domain.ModelFamily {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	families := make([]domain.ModelFamily, 0, len(parts))
	for _, p := range parts {
		families = append(families, domain.ModelFamily(strings.TrimSpace(p)))
	}
	return families
}
