// Package content реализует модель по текстовому профилю товара: кодировщик, индекс ближайших соседей
// и сохранение снимка на диск.
package content

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/recommender/internal/domain"
	"github.com/DRSN-tech/recommender/pkg/e"
	"github.com/DRSN-tech/recommender/pkg/logger"
	"github.com/google/uuid"
)

// DefaultBatchSize — сколько профилей отправляется в кодировщик за раз.
const DefaultBatchSize = 64

// ProductSource отдаёт товары, которые есть в наличии.
type ProductSource interface {
	InStockProducts(ctx context.Context) ([]domain.Product, error)
}

// Snapshot — неизменяемый результат одного прохода: таблица эмбеддингов и индекс над ней.
type Snapshot struct {
	buildID        string
	products       domain.IDIndex
	embeddings     [][]float32 // выровнено с products
	index          Index
	dim            int
	encoderVersion string
	builtAt        time.Time
}

func (s *Snapshot) BuildID() string { return s.buildID }

func (s *Snapshot) Products() domain.IDIndex { return s.products }

func (s *Snapshot) Dim() int { return s.dim }

func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Embedding возвращает вектор товара.
func (s *Snapshot) Embedding(productID int64) ([]float32, bool) {
	i, ok := s.products.Position(productID)
	if !ok {
		return nil, false
	}
	return s.embeddings[i], true
}

// FitReport описывает результат Fit.
type FitReport struct {
	BuildID     string
	NumProducts int
	Skipped     bool
}

// Model хранит текущий снимок контентной модели.
type Model struct {
	source    ProductSource
	encoder   Encoder
	builder   IndexBuilder
	log       logger.Logger
	batchSize int
	now       func() time.Time
	snap      atomic.Pointer[Snapshot]
}

// Option настраивает Model.
type Option func(*Model)

// WithIndexBuilder подменяет построитель индекса (по умолчанию FlatBuilder).
func WithIndexBuilder(b IndexBuilder) Option {
	return func(m *Model) { m.builder = b }
}

// WithBatchSize задаёт размер пакета для кодировщика.
func WithBatchSize(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func NewModel(source ProductSource, encoder Encoder, log logger.Logger, opts ...Option) *Model {
	m := &Model{
		source:    source,
		encoder:   encoder,
		builder:   FlatBuilder{},
		log:       log,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fit кодирует профили товаров в наличии, строит индекс и публикует новый снимок.
func (m *Model) Fit(ctx context.Context) (FitReport, error) {
	const op = "content.Model.Fit"

	products, err := m.source.InStockProducts(ctx)
	if err != nil {
		return FitReport{}, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrUpstreamUnavailable, err))
	}

	eligible := make(map[int64]domain.Product, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		if !p.InStock() {
			continue
		}
		if _, dup := eligible[p.ID]; dup {
			continue
		}
		eligible[p.ID] = p
		ids = append(ids, p.ID)
	}

	if len(ids) == 0 {
		m.log.Warnf("%s: no products in stock, content model left unchanged", op)
		return FitReport{Skipped: true}, nil
	}

	index := domain.NewIDIndex(ids)
	profiles := make([]string, index.Len())
	for i := range profiles {
		profiles[i] = eligible[index.ID(i)].Profile()
	}

	embeddings, err := m.encodeAll(ctx, profiles)
	if err != nil {
		return FitReport{}, e.Wrap(op, err)
	}

	buildID := uuid.NewString()
	searchIndex, err := m.builder.Build(ctx, buildID, index.IDs(), embeddings)
	if err != nil {
		return FitReport{}, e.Wrap(op, err)
	}

	m.snap.Store(&Snapshot{
		buildID:        buildID,
		products:       index,
		embeddings:     embeddings,
		index:          searchIndex,
		dim:            m.encoder.Dimension(),
		encoderVersion: m.encoder.Version(),
		builtAt:        m.now(),
	})

	m.log.Infof("%s: indexed %d products, dim=%d, encoder=%s", op, index.Len(), m.encoder.Dimension(), m.encoder.Version())

	return FitReport{BuildID: buildID, NumProducts: index.Len()}, nil
}

func (m *Model) encodeAll(ctx context.Context, texts []string) ([][]float32, error) {
	dim := m.encoder.Dimension()
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += m.batchSize {
		end := min(start+m.batchSize, len(texts))

		vectors, err := m.encoder.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch [%d:%d]: %w", e.ErrEncoderFailure, start, end, err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: batch [%d:%d]: got %d vectors", e.ErrEncoderFailure, start, end, len(vectors))
		}
		for _, v := range vectors {
			if len(v) != dim {
				return nil, fmt.Errorf("%w: %w: want %d, got %d", e.ErrEncoderFailure, e.ErrDimensionMismatch, dim, len(v))
			}
		}

		out = append(out, vectors...)
	}

	return out, nil
}

// Snapshot возвращает текущий снимок или nil.
func (m *Model) Snapshot() *Snapshot {
	return m.snap.Load()
}

// SimilarItems ищет k+1 ближайших соседей вектора товара и исключает сам товар.
// Оценка равна 1/(1+расстояние).
func (m *Model) SimilarItems(ctx context.Context, productID int64, k int) ([]domain.ScoredProduct, error) {
	snap := m.snap.Load()
	if snap == nil || k <= 0 {
		return []domain.ScoredProduct{}, nil
	}

	vec, ok := snap.Embedding(productID)
	if !ok {
		return []domain.ScoredProduct{}, nil
	}

	neighbors, err := snap.index.Search(ctx, vec, k+1)
	if err != nil {
		return nil, e.Wrap("content.Model.SimilarItems", err)
	}

	out := make([]domain.ScoredProduct, 0, k)
	for _, n := range neighbors {
		if n.ProductID == productID {
			continue
		}
		if len(out) == k {
			break
		}
		out = append(out, toScored(n))
	}

	return out, nil
}

// Search кодирует запрос тем же кодировщиком и возвращает k ближайших товаров.
func (m *Model) Search(ctx context.Context, query string, k int) ([]domain.ScoredProduct, error) {
	const op = "content.Model.Search"

	snap := m.snap.Load()
	if snap == nil || k <= 0 {
		return []domain.ScoredProduct{}, nil
	}

	vectors, err := m.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %w", e.ErrEncoderFailure, err))
	}
	if len(vectors) != 1 || len(vectors[0]) != snap.dim {
		return nil, e.Wrap(op, e.ErrDimensionMismatch)
	}

	neighbors, err := snap.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	out := make([]domain.ScoredProduct, len(neighbors))
	for i, n := range neighbors {
		out[i] = toScored(n)
	}
	return out, nil
}

// Status описывает текущий снимок.
func (m *Model) Status() domain.ContentStatus {
	snap := m.snap.Load()
	if snap == nil {
		return domain.ContentStatus{}
	}

	builtAt := snap.builtAt
	return domain.ContentStatus{
		Trained:     true,
		NumProducts: snap.products.Len(),
		BuiltAt:     &builtAt,
	}
}

// Version — идентификатор текущего снимка или пустая строка.
func (m *Model) Version() string {
	if snap := m.snap.Load(); snap != nil {
		return snap.buildID
	}
	return ""
}

func toScored(n Neighbor) domain.ScoredProduct {
	return domain.ScoredProduct{ProductID: n.ProductID, Score: 1 / (1 + n.Distance)}
}
