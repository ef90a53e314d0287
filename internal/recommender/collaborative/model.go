// Package collaborative реализует item-item модель по совместным покупкам.
package collaborative

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/internal/recommender/rank"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxAge — возраст снимка, после которого модель требует переобучения.
const DefaultMaxAge = 24 * time.Hour

// InteractionSource отдаёт агрегированные покупки из завершённых заказов.
type InteractionSource interface {
	Interactions(ctx context.Context) ([]domain.Interaction, error)
}

// Snapshot — неизменяемый результат одного прохода обучения.
type Snapshot struct {
	buildID    string
	matrix     *InteractionMatrix
	similarity *mat.SymDense
	trainedAt  time.Time
}

// BuildID — идентификатор снимка.
func (s *Snapshot) BuildID() string { return s.buildID }

// TrainedAt — время публикации снимка.
func (s *Snapshot) TrainedAt() time.Time { return s.trainedAt }

// Products — индекс товаров снимка.
func (s *Snapshot) Products() domain.IDIndex { return s.matrix.Products }

// Users — индекс пользователей снимка.
func (s *Snapshot) Users() domain.IDIndex { return s.matrix.Users }

// Similarity возвращает сходство двух товаров снимка.
func (s *Snapshot) Similarity(a, b int64) (float64, bool) {
	i, ok := s.matrix.Products.Position(a)
	if !ok {
		return 0, false
	}
	j, ok := s.matrix.Products.Position(b)
	if !ok {
		return 0, false
	}
	return s.similarity.At(i, j), true
}

// FitReport описывает результат Fit.
type FitReport struct {
	BuildID     string
	NumProducts int
	NumUsers    int
	Skipped     bool // данных нет, прежний снимок оставлен
}

// Model хранит текущий снимок и публикует новый атомарной заменой указателя.
type Model struct {
	source InteractionSource
	log    logger.Logger
	now    func() time.Time
	snap   atomic.Pointer[Snapshot]
}

// Option настраивает Model.
type Option func(*Model)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func NewModel(source InteractionSource, log logger.Logger, opts ...Option) *Model {
	m := &Model{
		source: source,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit перестраивает модель по текущим данным и публикует новый снимок.
// При ошибке источника прежний снимок продолжает обслуживать запросы.
func (m *Model) Fit(ctx context.Context) (FitReport, error) {
	const op = "collaborative.Model.Fit"

	rows, err := m.source.Interactions(ctx)
	if err != nil {
		return FitReport{}, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrUpstreamUnavailable, err))
	}

	matrix := BuildMatrix(rows)
	if matrix.Empty() {
		m.log.Warnf("%s: no completed orders, collaborative model left unchanged", op)
		return FitReport{Skipped: true}, nil
	}

	snap := &Snapshot{
		buildID:    uuid.NewString(),
		matrix:     matrix,
		similarity: ItemSimilarity(matrix.Data),
		trainedAt:  m.now(),
	}
	m.snap.Store(snap)

	m.log.Infof("%s: trained on %d users x %d products", op, matrix.Users.Len(), matrix.Products.Len())

	return FitReport{
		BuildID:     snap.buildID,
		NumProducts: matrix.Products.Len(),
		NumUsers:    matrix.Users.Len(),
	}, nil
}

// Snapshot возвращает текущий снимок или nil, если модель не обучена.
func (m *Model) Snapshot() *Snapshot {
	return m.snap.Load()
}

// SimilarItems возвращает k товаров с наибольшим положительным сходством.
// Для необученной модели и неизвестного товара результат пустой.
func (m *Model) SimilarItems(productID int64, k int) []domain.ScoredProduct {
	snap := m.snap.Load()
	if snap == nil || k <= 0 {
		return []domain.ScoredProduct{}
	}

	row, ok := snap.matrix.Products.Position(productID)
	if !ok {
		return []domain.ScoredProduct{}
	}

	n := snap.matrix.Products.Len()
	candidates := make([]domain.ScoredProduct, 0, n)
	for j := 0; j < n; j++ {
		if j == row {
			continue
		}
		candidates = append(candidates, domain.ScoredProduct{
			ProductID: snap.matrix.Products.ID(j),
			Score:     snap.similarity.At(row, j),
		})
	}

	return rank.TopPositive(candidates, k)
}

// UserRecommendations оценивает товары как произведение матрицы сходства на вектор покупок пользователя.
// При excludePurchased уже купленные товары не попадают в выдачу.
func (m *Model) UserRecommendations(userID int64, k int, excludePurchased bool) []domain.ScoredProduct {
	snap := m.snap.Load()
	if snap == nil || k <= 0 {
		return []domain.ScoredProduct{}
	}

	u, ok := snap.matrix.Users.Position(userID)
	if !ok {
		return []domain.ScoredProduct{}
	}

	purchases := snap.matrix.Data.RowView(u)
	var scores mat.VecDense
	scores.MulVec(snap.similarity, purchases)

	n := snap.matrix.Products.Len()
	candidates := make([]domain.ScoredProduct, 0, n)
	for j := 0; j < n; j++ {
		if excludePurchased && purchases.AtVec(j) > 0 {
			continue
		}
		candidates = append(candidates, domain.ScoredProduct{
			ProductID: snap.matrix.Products.ID(j),
			Score:     scores.AtVec(j),
		})
	}

	return rank.TopPositive(candidates, k)
}

// NeedsRetraining — true, если модель не обучена или снимок старше maxAge.
func (m *Model) NeedsRetraining(maxAge time.Duration) bool {
	snap := m.snap.Load()
	if snap == nil {
		return true
	}
	return m.now().Sub(snap.trainedAt) > maxAge
}

// Status описывает текущий снимок.
func (m *Model) Status(maxAge time.Duration) domain.CollaborativeStatus {
	snap := m.snap.Load()
	if snap == nil {
		return domain.CollaborativeStatus{NeedsRetraining: true}
	}

	trainedAt := snap.trainedAt
	return domain.CollaborativeStatus{
		Trained:         true,
		NumProducts:     snap.matrix.Products.Len(),
		NumUsers:        snap.matrix.Users.Len(),
		LastTrained:     &trainedAt,
		NeedsRetraining: m.now().Sub(trainedAt) > maxAge,
	}
}

// Version — идентификатор текущего снимка или пустая строка.
func (m *Model) Version() string {
	if snap := m.snap.Load(); snap != nil {
		return snap.buildID
	}
	return ""
}
