package grid

import (
	"math"
)

const (
	// The scale bounds, in pixels per world unit.
	MinScale     = 12.0
	MaxScale     = 140.0
	DefaultScale = 60.0

	// The divisor applied to wheel deltas before the exponential zoom response.
	wheelDivisor     = 500.0
	wheelSensitivity = 0.9
)

// Camera maps world space to screen space. Scale is kept within
// [MinScale, MaxScale] by every mutating method.
type Camera struct {
	OffsetX float64
	OffsetY float64
	Scale   float64
}

func NewCamera() Camera {
	return Camera{Scale: DefaultScale}
}

func (c Camera) WorldToScreen(wx, wy float64) Point {
	return Point{
		X: wx*c.Scale + c.OffsetX,
		Y: wy*c.Scale + c.OffsetY,
	}
}

func (c Camera) ScreenToWorld(px, py float64) Point {
	return Point{
		X: (px - c.OffsetX) / c.Scale,
		Y: (py - c.OffsetY) / c.Scale,
	}
}

// CellAt returns the cell under the given screen position.
func (c Camera) CellAt(px, py float64) Cell {
	w := c.ScreenToWorld(px, py)
	return Cell{
		X: int(math.Floor(w.X)),
		Y: int(math.Floor(w.Y)),
	}
}

func (c *Camera) SetOffset(x, y float64) {
	c.OffsetX = x
	c.OffsetY = y
}

func (c *Camera) SetScale(v float64) {
	c.Scale = Clamp(v, MinScale, MaxScale)
}

// ZoomAt rescales the camera with an exponential response to the wheel delta
// and moves the offset so the world point under (px, py) stays under it.
func (c *Camera) ZoomAt(px, py, deltaY float64) {
	before := c.ScreenToWorld(px, py)

	zoom := math.Exp((-deltaY / wheelDivisor) * wheelSensitivity)
	c.SetScale(c.Scale * zoom)

	c.OffsetX = px - before.X*c.Scale
	c.OffsetY = py - before.Y*c.Scale
}

// VisibleWindow returns the world rectangle covered by a screen of the given
// size, snapped outward to whole cells and expanded by margin cells.
func (c Camera) VisibleWindow(width, height float64, margin int) Rect {
	tl := c.ScreenToWorld(0, 0)
	br := c.ScreenToWorld(width, height)

	m := float64(margin)
	return Rect{
		Min: Point{X: math.Floor(tl.X) - m, Y: math.Floor(tl.Y) - m},
		Max: Point{X: math.Ceil(br.X) + m, Y: math.Ceil(br.Y) + m},
	}
}
