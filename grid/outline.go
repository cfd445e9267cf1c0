package grid

// Outline returns the boundary of the union of the unit squares at the given
// cells, in world space.
//
// A side of a cell is emitted iff the neighboring cell on that side is not in
// the set, so disjoint regions produce separate contours and holes produce
// their own inner contour. Duplicated input cells are ignored. Sides are
// emitted per cell in input order: top, right, bottom, left.
func Outline(cells []Cell) []Segment {
	set := NewCellSet(cells...)
	segments := make([]Segment, 0, len(set)*4)
	emitted := make(CellSet, len(set))

	for _, c := range cells {
		if emitted.Has(c) {
			continue
		}
		emitted.Add(c)

		x0, y0 := float64(c.X), float64(c.Y)
		x1, y1 := x0+1, y0+1

		if !set.Has(c.Up()) {
			segments = append(segments, Segment{Point{x0, y0}, Point{x1, y0}})
		}
		if !set.Has(c.Right()) {
			segments = append(segments, Segment{Point{x1, y0}, Point{x1, y1}})
		}
		if !set.Has(c.Down()) {
			segments = append(segments, Segment{Point{x1, y1}, Point{x0, y1}})
		}
		if !set.Has(c.Left()) {
			segments = append(segments, Segment{Point{x0, y1}, Point{x0, y0}})
		}
	}

	return segments
}
