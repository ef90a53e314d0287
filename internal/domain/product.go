package domain

import "strings"

// Product — товар витрины в том виде, в котором он нужен контентной модели.
type Product struct {
	ID          int64
	Name        string
	Description *string
	Category    *string
	Stock       int64
}

// InStock сообщает, участвует ли товар в контентной модели.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Profile собирает текстовый профиль товара: имя, затем описание и категория, если они есть.
func (p Product) Profile() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(p.Name))

	if p.Description != nil {
		if d := strings.TrimSpace(*p.Description); d != "" {
			b.WriteString(". ")
			b.WriteString(d)
		}
	}

	if p.Category != nil {
		if c := strings.TrimSpace(*p.Category); c != "" {
			b.WriteString(". Category: ")
			b.WriteString(c)
		}
	}

	return b.String()
}
