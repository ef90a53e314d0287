package domain

import "slices"

// IDIndex — двунаправленное соответствие идентификатора и номера строки снимка.
// Идентификаторы хранятся по возрастанию, номер строки равен позиции в этом порядке.
type IDIndex struct {
	ids []int64
	pos map[int64]int
}

// NewIDIndex строит индекс по набору идентификаторов. Повторы отбрасываются, порядок — по возрастанию.
func NewIDIndex(ids []int64) IDIndex {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	pos := make(map[int64]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}

	return IDIndex{ids: sorted, pos: pos}
}

// Len — количество строк.
func (x IDIndex) Len() int {
	return len(x.ids)
}

// Position возвращает номер строки идентификатора.
func (x IDIndex) Position(id int64) (int, bool) {
	i, ok := x.pos[id]
	return i, ok
}

// ID возвращает идентификатор строки i.
func (x IDIndex) ID(i int) int64 {
	return x.ids[i]
}

// IDs возвращает копию идентификаторов в порядке строк.
func (x IDIndex) IDs() []int64 {
	return slices.Clone(x.ids)
}
