package collaborative

import (
	"github.com/DRSN-tech/recommender/internal/domain"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// InteractionMatrix — плотная матрица пользователи × товары с индексами строк и столбцов.
type InteractionMatrix struct {
	Users    domain.IDIndex
	Products domain.IDIndex
	Data     *mat.Dense // nil, если взаимодействий нет
}

// Empty сообщает, что в матрице нет ни одного товара.
func (m *InteractionMatrix) Empty() bool {
	return m.Data == nil || m.Products.Len() == 0
}

// BuildMatrix собирает матрицу по агрегированным взаимодействиям.
// Строки с отрицательной силой пропускаются, повторные пары суммируются.
func BuildMatrix(rows []domain.Interaction) *InteractionMatrix {
	userIDs := make([]int64, 0, len(rows))
	productIDs := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r.Strength < 0 {
			continue
		}
		userIDs = append(userIDs, r.UserID)
		productIDs = append(productIDs, r.ProductID)
	}

	m := &InteractionMatrix{
		Users:    domain.NewIDIndex(userIDs),
		Products: domain.NewIDIndex(productIDs),
	}
	if m.Users.Len() == 0 || m.Products.Len() == 0 {
		return m
	}

	m.Data = mat.NewDense(m.Users.Len(), m.Products.Len(), nil)
	for _, r := range rows {
		if r.Strength < 0 {
			continue
		}
		u, _ := m.Users.Position(r.UserID)
		p, _ := m.Products.Position(r.ProductID)
		m.Data.Set(u, p, m.Data.At(u, p)+r.Strength)
	}

	return m
}

// ItemSimilarity считает косинусное сходство столбцов матрицы взаимодействий.
// Результат симметричен по построению, диагональ равна нулю.
// Столбец без взаимодействий даёт нулевое сходство со всеми товарами.
func ItemSimilarity(x *mat.Dense) *mat.SymDense {
	users, items := x.Dims()

	normalized := mat.NewDense(users, items, nil)
	col := make([]float64, users)
	for j := 0; j < items; j++ {
		mat.Col(col, j, x)
		norm := floats.Norm(col, 2)
		if norm == 0 {
			continue
		}
		floats.Scale(1/norm, col)
		normalized.SetCol(j, col)
	}

	var sim mat.SymDense
	sim.SymOuterK(1, normalized.T())
	for i := 0; i < items; i++ {
		sim.SetSym(i, i, 0)
	}

	return &sim
}
