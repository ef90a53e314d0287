package domain

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/recommender/pkg/e"
)

// ScoredProduct — товар с оценкой релевантности.
type ScoredProduct struct {
	ProductID int64
	Score     float64
}

// Mode — способ ранжирования похожих товаров.
type Mode int

const (
	ModeHybrid Mode = iota
	ModeCollaborative
	ModeContent
)

var modeNames = map[Mode]string{
	ModeHybrid:        "hybrid",
	ModeCollaborative: "collaborative",
	ModeContent:       "content",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode разбирает имя режима. Пустая строка означает hybrid.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hybrid":
		return ModeHybrid, nil
	case "collaborative":
		return ModeCollaborative, nil
	case "content":
		return ModeContent, nil
	default:
		return 0, fmt.Errorf("%w: %q", e.ErrInvalidMode, s)
	}
}
