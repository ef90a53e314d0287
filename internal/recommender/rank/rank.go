// Package rank содержит общий порядок выдачи: по убыванию оценки, при равенстве — меньший id первым.
package rank

import (
	"cmp"
	"slices"

	"github.com/DRSN-tech/recommender/internal/domain"
)

// Compare упорядочивает оценки по убыванию, равные — по возрастанию product id.
func Compare(a, b domain.ScoredProduct) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.ProductID, b.ProductID)
}

// Sort сортирует items на месте.
func Sort(items []domain.ScoredProduct) {
	slices.SortFunc(items, Compare)
}

// TopPositive оставляет положительные оценки, сортирует и обрезает до k.
func TopPositive(items []domain.ScoredProduct, k int) []domain.ScoredProduct {
	if k <= 0 {
		return []domain.ScoredProduct{}
	}

	out := make([]domain.ScoredProduct, 0, len(items))
	for _, it := range items {
		if it.Score > 0 {
			out = append(out, it)
		}
	}

	Sort(out)
	if len(out) > k {
		out = out[:k]
	}

	return out
}
