package domain

// Interaction — суммарное количество товара, купленного пользователем в завершённых заказах.
type Interaction struct {
	UserID    int64
	ProductID int64
	Strength  float64
}
