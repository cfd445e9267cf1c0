package viewport

import (
	"github.com/aukilabs/splatgrid/grid"
)

// Selection is the set of cells the user toggled on before submitting a
// claim.
type Selection struct {
	cells grid.CellSet
}

// Toggle adds the cell when absent and removes it when present. It returns
// whether the cell is selected afterward.
func (s *Selection) Toggle(c grid.Cell) bool {
	if s.cells == nil {
		s.cells = make(grid.CellSet)
	}

	if s.cells.Has(c) {
		s.cells.Remove(c)
		return false
	}
	s.cells.Add(c)
	return true
}

func (s *Selection) Has(c grid.Cell) bool {
	return s.cells.Has(c)
}

func (s *Selection) Len() int {
	return len(s.cells)
}

func (s *Selection) Clear() {
	s.cells = nil
}

// Cells returns the selected cells ordered by row then column.
func (s *Selection) Cells() []grid.Cell {
	return s.cells.Sorted()
}

// prune removes the cells for which occupied returns true. It reports whether
// any cell was removed.
func (s *Selection) prune(occupied func(grid.Cell) bool) bool {
	removed := false
	for c := range s.cells {
		if occupied(c) {
			s.cells.Remove(c)
			removed = true
		}
	}
	return removed
}
