package content

import (
	"cmp"
	"context"
	"slices"

	"github.com/DRSN-tech/recommender/pkg/e"
	"gonum.org/v1/gonum/floats"
)

// Neighbor — найденный товар и евклидово расстояние до запроса.
type Neighbor struct {
	ProductID int64
	Distance  float64
}

// Index — структура точного поиска ближайших соседей.
type Index interface {
	Dim() int
	Len() int
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
}

// IndexBuilder строит индекс для нового снимка. ids и vectors выровнены построчно.
type IndexBuilder interface {
	Build(ctx context.Context, buildID string, ids []int64, vectors [][]float32) (Index, error)
}

// FlatIndex — полный перебор по L2, аналог IndexFlatL2.
type FlatIndex struct {
	dim  int
	ids  []int64
	rows [][]float64
}

// NewFlatIndex копирует векторы в индекс. Все векторы должны иметь размерность dim.
func NewFlatIndex(dim int, ids []int64, vectors [][]float32) (*FlatIndex, error) {
	const op = "content.NewFlatIndex"

	if len(ids) != len(vectors) {
		return nil, e.Wrap(op, e.ErrDimensionMismatch)
	}

	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, e.Wrap(op, e.ErrDimensionMismatch)
		}
		rows[i] = toFloat64(v)
	}

	return &FlatIndex{dim: dim, ids: slices.Clone(ids), rows: rows}, nil
}

func (f *FlatIndex) Dim() int { return f.dim }

func (f *FlatIndex) Len() int { return len(f.ids) }

// Search возвращает k ближайших векторов по возрастанию расстояния, равные — по возрастанию id.
func (f *FlatIndex) Search(_ context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dim {
		return nil, e.Wrap("content.FlatIndex.Search", e.ErrDimensionMismatch)
	}
	if k <= 0 || len(f.rows) == 0 {
		return []Neighbor{}, nil
	}

	q := toFloat64(query)
	all := make([]Neighbor, len(f.rows))
	for i, row := range f.rows {
		all[i] = Neighbor{ProductID: f.ids[i], Distance: floats.Distance(q, row, 2)}
	}

	slices.SortFunc(all, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	if len(all) > k {
		all = all[:k]
	}
	return all, nil
}

// FlatBuilder строит FlatIndex.
type FlatBuilder struct{}

func (FlatBuilder) Build(_ context.Context, _ string, ids []int64, vectors [][]float32) (Index, error) {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	return NewFlatIndex(dim, ids, vectors)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
