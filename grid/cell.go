package grid

import (
	"sort"
	"strconv"
)

// Cell identifies one unit square of the lattice.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Key returns the canonical "x,y" key of the cell.
func (c Cell) Key() string {
	return strconv.Itoa(c.X) + "," + strconv.Itoa(c.Y)
}

func (c Cell) Up() Cell    { return Cell{X: c.X, Y: c.Y - 1} }
func (c Cell) Right() Cell { return Cell{X: c.X + 1, Y: c.Y} }
func (c Cell) Down() Cell  { return Cell{X: c.X, Y: c.Y + 1} }
func (c Cell) Left() Cell  { return Cell{X: c.X - 1, Y: c.Y} }

// Center returns the world coordinates of the cell center.
func (c Cell) Center() Point {
	return Point{X: float64(c.X) + 0.5, Y: float64(c.Y) + 0.5}
}

// CellSet is a set of cells.
type CellSet map[Cell]struct{}

// NewCellSet returns a set holding the given cells.
func NewCellSet(cells ...Cell) CellSet {
	s := make(CellSet, len(cells))
	for _, c := range cells {
		s[c] = struct{}{}
	}
	return s
}

func (s CellSet) Has(c Cell) bool {
	_, ok := s[c]
	return ok
}

func (s CellSet) Add(c Cell) {
	s[c] = struct{}{}
}

func (s CellSet) Remove(c Cell) {
	delete(s, c)
}

// Sorted returns the cells ordered by row then column.
func (s CellSet) Sorted() []Cell {
	cells := make([]Cell, 0, len(s))
	for c := range s {
		cells = append(cells, c)
	}
	SortCells(cells)
	return cells
}

// Dedupe returns the cells without duplicates, keeping the first occurrence
// order.
func Dedupe(cells []Cell) []Cell {
	seen := make(CellSet, len(cells))
	res := make([]Cell, 0, len(cells))
	for _, c := range cells {
		if seen.Has(c) {
			continue
		}
		seen.Add(c)
		res = append(res, c)
	}
	return res
}

// SortCells sorts cells by row then column.
func SortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
}

// IndexToCell maps a linear index of a square bounded grid to its cell.
func IndexToCell(index, side int) Cell {
	if side <= 0 {
		side = 1
	}
	return Cell{X: index % side, Y: index / side}
}

// Side returns the side length of a square grid holding resolution cells.
// It returns false when resolution is not a perfect square.
func Side(resolution int) (int, bool) {
	if resolution <= 0 {
		return 0, false
	}

	side := 1
	for side*side < resolution {
		side++
	}
	return side, side*side == resolution
}
