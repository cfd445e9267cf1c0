package grid

// Index maps cells to the item occupying them.
//
// An Index is never mutated after being built. When the item list changes, a
// new Index is built from the full list.
type Index[T any] struct {
	cells map[Cell]T
}

// BuildIndex returns an index where every cell of every item maps to that
// item. Items that illegally share a cell do not fail the build: the last one
// in iteration order wins.
func BuildIndex[T any](items []T, cellsOf func(T) []Cell) *Index[T] {
	size := 0
	for _, item := range items {
		size += len(cellsOf(item))
	}

	idx := &Index[T]{
		cells: make(map[Cell]T, size),
	}
	for _, item := range items {
		for _, c := range cellsOf(item) {
			idx.cells[c] = item
		}
	}
	return idx
}

// Lookup returns the item occupying the given cell.
func (idx *Index[T]) Lookup(c Cell) (T, bool) {
	var zero T
	if idx == nil {
		return zero, false
	}

	item, ok := idx.cells[c]
	return item, ok
}

func (idx *Index[T]) Occupied(c Cell) bool {
	_, ok := idx.Lookup(c)
	return ok
}

func (idx *Index[T]) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.cells)
}
