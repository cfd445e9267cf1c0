package viewport

import (
	"image/color"
	"math"

	"github.com/aukilabs/splatgrid/grid"
)

// Surface is a drawing target in device pixels.
type Surface interface {
	Clear(clr color.Color)
	StrokeLine(x0, y0, x1, y1, width float64, clr color.Color)
	StrokeRect(x, y, w, h, width float64, clr color.Color)
	FillCircle(cx, cy, r float64, clr color.Color)
}

const (
	gridMargin         = 2
	gridLineWidth      = 1.0
	claimLineWidth     = 3.0
	selectionLineWidth = 4.0
	hoverLineWidth     = 3.0
)

var (
	BackgroundColor     = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	GridColor           = color.NRGBA{R: 255, G: 255, B: 255, A: 46}
	OwnedClaimColor     = color.NRGBA{R: 255, G: 0, B: 0, A: 230}
	OwnedCentroidColor  = color.NRGBA{R: 255, G: 0, B: 0, A: 242}
	OtherClaimColor     = color.NRGBA{R: 255, G: 255, B: 255, A: 204}
	OtherCentroidColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
	SelectionColor      = color.NRGBA{R: 255, G: 255, B: 255, A: 242}
	HoverHighlightColor = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
)

// Render draws the view on the given surface.
func (v *Viewport) Render(s Surface) {
	s.Clear(BackgroundColor)

	v.renderGrid(s)

	for i, c := range v.claims {
		stroke, dot := OtherClaimColor, OtherCentroidColor
		if c.OwnedBy(v.viewerID) {
			stroke, dot = OwnedClaimColor, OwnedCentroidColor
		}

		v.strokeSegments(s, v.claimOutlines[i], claimLineWidth, stroke)

		p := v.camera.WorldToScreen(v.claimCentroids[i].X, v.claimCentroids[i].Y)
		r := math.Max(2, v.camera.Scale*0.06)
		s.FillCircle(p.X*v.dpr, p.Y*v.dpr, r*v.dpr, dot)
	}

	if len(v.selectionOutline) != 0 {
		v.strokeSegments(s, v.selectionOutline, selectionLineWidth, SelectionColor)
	}

	if v.hovered {
		p := v.camera.WorldToScreen(float64(v.hoverCell.X), float64(v.hoverCell.Y))
		size := v.camera.Scale
		s.StrokeRect(
			(p.X+1)*v.dpr,
			(p.Y+1)*v.dpr,
			(size-2)*v.dpr,
			(size-2)*v.dpr,
			hoverLineWidth*v.dpr,
			HoverHighlightColor,
		)
	}
}

// renderGrid draws the lattice lines inside the visible window only.
func (v *Viewport) renderGrid(s Surface) {
	w := v.camera.VisibleWindow(v.width, v.height, gridMargin)

	for x := w.Min.X; x <= w.Max.X; x++ {
		v.strokeWorldLine(s, grid.Point{X: x, Y: w.Min.Y}, grid.Point{X: x, Y: w.Max.Y}, gridLineWidth, GridColor)
	}
	for y := w.Min.Y; y <= w.Max.Y; y++ {
		v.strokeWorldLine(s, grid.Point{X: w.Min.X, Y: y}, grid.Point{X: w.Max.X, Y: y}, gridLineWidth, GridColor)
	}
}

func (v *Viewport) strokeSegments(s Surface, segments []grid.Segment, width float64, clr color.Color) {
	for _, seg := range segments {
		v.strokeWorldLine(s, seg.From, seg.To, width, clr)
	}
}

func (v *Viewport) strokeWorldLine(s Surface, from, to grid.Point, width float64, clr color.Color) {
	a := v.camera.WorldToScreen(from.X, from.Y)
	b := v.camera.WorldToScreen(to.X, to.Y)
	s.StrokeLine(a.X*v.dpr, a.Y*v.dpr, b.X*v.dpr, b.Y*v.dpr, width*v.dpr, clr)
}
