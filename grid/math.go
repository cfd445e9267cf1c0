package grid

import (
	"math"
)

func Clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Point is a position in either world or screen space.
type Point struct {
	X float64
	Y float64
}

func (p Point) EqualWithEpsilon(p2 Point, epsilon float64) bool {
	return EqualWithEpsilon(p.X, p2.X, epsilon) &&
		EqualWithEpsilon(p.Y, p2.Y, epsilon)
}

func Add(a Point, b Point) Point {
	return Point{a.X + b.X, a.Y + b.Y}
}

func Sub(a Point, b Point) Point {
	return Point{a.X - b.X, a.Y - b.Y}
}

func Mul(a Point, s float64) Point {
	return Point{a.X * s, a.Y * s}
}

func (p Point) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Segment is a line segment.
type Segment struct {
	From Point
	To   Point
}

// Rect is an axis aligned rectangle.
type Rect struct {
	Min Point
	Max Point
}

func (r Rect) Width() float64 {
	return r.Max.X - r.Min.X
}

func (r Rect) Height() float64 {
	return r.Max.Y - r.Min.Y
}

// Centroid returns the mean of the cell centers. It returns the origin for an
// empty slice.
func Centroid(cells []Cell) Point {
	if len(cells) == 0 {
		return Point{}
	}

	var sum Point
	for _, c := range cells {
		sum = Add(sum, c.Center())
	}
	return Mul(sum, 1/float64(len(cells)))
}
