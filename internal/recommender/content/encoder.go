package content

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Encoder переводит тексты в векторы фиксированной размерности.
// Для одной и той же версии кодировщика результат детерминирован.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Version() string
}

// DefaultHashingDimension — размерность локального кодировщика по умолчанию.
const DefaultHashingDimension = 384

// HashingEncoder — локальный кодировщик на feature hashing: униграммы и биграммы токенов
// раскладываются по корзинам xxhash со знаком, вектор нормируется по L2.
type HashingEncoder struct {
	dim int
}

func NewHashingEncoder(dim int) *HashingEncoder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingEncoder{dim: dim}
}

func (h *HashingEncoder) Dimension() int { return h.dim }

func (h *HashingEncoder) Version() string { return fmt.Sprintf("hashing-v1-%d", h.dim) }

func (h *HashingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.encodeOne(text)
	}
	return out, nil
}

func (h *HashingEncoder) encodeOne(text string) []float32 {
	const bigramWeight = 0.5

	acc := make([]float64, h.dim)
	tokens := tokenize(text)
	for i, tok := range tokens {
		h.add(acc, tok, 1)
		if i > 0 {
			h.add(acc, tokens[i-1]+" "+tok, bigramWeight)
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, h.dim)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (h *HashingEncoder) add(acc []float64, feature string, weight float64) {
	sum := xxhash.Sum64String(feature)
	bucket := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
