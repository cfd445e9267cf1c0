package viewport

import (
	"image/color"
	"testing"

	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
	"github.com/stretchr/testify/require"
)

// With a 200x100 view, cell (0, 0) covers the screen from (100, 50) to
// (160, 110).
func newTestViewport() *Viewport {
	return New(200, 100, 1)
}

func click(v *Viewport, x, y float64) {
	v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: x, Y: y})
	v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: x, Y: y})
}

func TestViewportToggle(t *testing.T) {
	t.Run("click toggles the released cell", func(t *testing.T) {
		v := newTestViewport()

		var toggled []grid.Cell
		var states []bool
		v.OnToggle = func(c grid.Cell, selected bool) {
			toggled = append(toggled, c)
			states = append(states, selected)
		}

		click(v, 110, 60)
		require.Equal(t, []grid.Cell{{X: 0, Y: 0}}, v.Selection())

		click(v, 110, 60)
		require.Empty(t, v.Selection())
		require.Equal(t, []grid.Cell{{X: 0, Y: 0}, {X: 0, Y: 0}}, toggled)
		require.Equal(t, []bool{true, false}, states)
	})

	t.Run("toggle pair is idempotent", func(t *testing.T) {
		v := newTestViewport()
		v.Toggle(grid.Cell{X: 3, Y: 3})

		before := v.Selection()
		v.Toggle(grid.Cell{X: -1, Y: 0})
		v.Toggle(grid.Cell{X: -1, Y: 0})
		require.Equal(t, before, v.Selection())
	})

	t.Run("toggling an occupied cell is ignored", func(t *testing.T) {
		v := newTestViewport()
		v.SetClaims([]models.Claim{
			{ID: "a", Cells: []grid.Cell{{X: 0, Y: 0}}},
		})

		called := false
		v.OnToggle = func(grid.Cell, bool) { called = true }

		v.Toggle(grid.Cell{X: 0, Y: 0})
		require.Empty(t, v.Selection())
		require.False(t, called)
	})

	t.Run("click on a claim opens it", func(t *testing.T) {
		v := newTestViewport()
		v.SetClaims([]models.Claim{
			{ID: "a", Cells: []grid.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}}},
		})

		var opened models.Claim
		v.OnOpen = func(c models.Claim) { opened = c }

		click(v, 170, 60)
		require.Equal(t, "a", opened.ID)
		require.Empty(t, v.Selection())
	})

	t.Run("new claims deselect occupied cells", func(t *testing.T) {
		v := newTestViewport()
		v.Toggle(grid.Cell{X: 0, Y: 0})
		v.Toggle(grid.Cell{X: 1, Y: 0})

		v.SetClaims([]models.Claim{
			{ID: "a", Cells: []grid.Cell{{X: 1, Y: 0}}},
		})
		require.Equal(t, []grid.Cell{{X: 0, Y: 0}}, v.Selection())
	})

	t.Run("viewer change clears the selection", func(t *testing.T) {
		v := newTestViewport()
		v.SetViewer("u1")
		v.Toggle(grid.Cell{X: 0, Y: 0})

		v.SetViewer("u1")
		require.Len(t, v.Selection(), 1)

		v.SetViewer("u2")
		require.Empty(t, v.Selection())
	})
}

func TestViewportPan(t *testing.T) {
	t.Run("movement under the threshold still clicks", func(t *testing.T) {
		v := newTestViewport()

		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 112, Y: 61})
		require.Equal(t, Armed, v.Phase())

		v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: 112, Y: 61})
		require.Equal(t, Idle, v.Phase())
		require.Equal(t, []grid.Cell{{X: 0, Y: 0}}, v.Selection())
		require.Equal(t, 100.0, v.Camera().OffsetX)
	})

	t.Run("drag past the threshold pans without clicking", func(t *testing.T) {
		v := newTestViewport()

		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 120, Y: 65})
		require.Equal(t, Panning, v.Phase())
		require.Equal(t, 110.0, v.Camera().OffsetX)
		require.Equal(t, 55.0, v.Camera().OffsetY)

		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 110, Y: 60})
		require.Equal(t, Panning, v.Phase())
		require.Equal(t, 100.0, v.Camera().OffsetX)

		v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: 110, Y: 60})
		require.Equal(t, Idle, v.Phase())
		require.Empty(t, v.Selection())
	})

	t.Run("secondary and middle buttons pan directly", func(t *testing.T) {
		for _, b := range []Button{ButtonSecondary, ButtonMiddle} {
			v := newTestViewport()

			v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60, Button: b})
			require.Equal(t, Panning, v.Phase())

			v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 111, Y: 60, Button: b})
			require.Equal(t, 101.0, v.Camera().OffsetX)

			v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: 111, Y: 60, Button: b})
			require.Empty(t, v.Selection())
		}
	})

	t.Run("leave ends the gesture", func(t *testing.T) {
		v := newTestViewport()

		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60})
		v.HandlePointerEvent(PointerEvent{Kind: PointerLeave})
		require.Equal(t, Idle, v.Phase())

		v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: 110, Y: 60})
		require.Empty(t, v.Selection())
	})

	t.Run("pan requests redraws", func(t *testing.T) {
		v := newTestViewport()

		redraws := 0
		v.RequestRedraw = func() { redraws++ }

		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60, Button: ButtonSecondary})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 111, Y: 60})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 112, Y: 60})

		// One for the first hovered cell and one per pan move.
		require.Equal(t, 3, redraws)
	})
}

func TestViewportWheel(t *testing.T) {
	t.Run("zoom keeps the world point under the cursor", func(t *testing.T) {
		v := newTestViewport()

		before := v.Camera().ScreenToWorld(37, 81)
		v.HandleWheel(37, 81, -240)

		cam := v.Camera()
		require.Greater(t, cam.Scale, grid.DefaultScale)
		require.True(t, cam.WorldToScreen(before.X, before.Y).EqualWithEpsilon(grid.Point{X: 37, Y: 81}, 1e-9))
	})

	t.Run("zoom during a pan continues from the zoomed camera", func(t *testing.T) {
		v := newTestViewport()

		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60, Button: ButtonSecondary})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 120, Y: 60})
		v.HandleWheel(120, 60, 300)

		zoomed := v.Camera()
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 130, Y: 70})
		require.InDelta(t, zoomed.OffsetX+10, v.Camera().OffsetX, 1e-9)
		require.InDelta(t, zoomed.OffsetY+10, v.Camera().OffsetY, 1e-9)
		require.Equal(t, zoomed.Scale, v.Camera().Scale)
	})
}

func TestViewportHover(t *testing.T) {
	v := newTestViewport()
	v.SetClaims([]models.Claim{
		{ID: "a", Cells: []grid.Cell{{X: 0, Y: 0}}},
	})

	var last Hover
	v.OnHover = func(h Hover) { last = h }

	t.Run("hover reports the claim under the pointer", func(t *testing.T) {
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 110, Y: 60})
		require.True(t, last.Active)
		require.Equal(t, grid.Cell{X: 0, Y: 0}, last.Cell)
		require.NotNil(t, last.Claim)
		require.Equal(t, "a", last.Claim.ID)
		require.Equal(t, 110.0, last.ScreenX)
	})

	t.Run("hover on an empty cell", func(t *testing.T) {
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 90, Y: 40})
		require.True(t, last.Active)
		require.Equal(t, grid.Cell{X: -1, Y: -1}, last.Cell)
		require.Nil(t, last.Claim)

		c, ok := v.HoveredCell()
		require.True(t, ok)
		require.Equal(t, grid.Cell{X: -1, Y: -1}, c)
	})

	t.Run("leave clears the hover", func(t *testing.T) {
		v.HandlePointerEvent(PointerEvent{Kind: PointerLeave})
		require.False(t, last.Active)

		_, ok := v.HoveredCell()
		require.False(t, ok)
	})

	t.Run("hover follows the panned camera", func(t *testing.T) {
		v.HandlePointerEvent(PointerEvent{Kind: PointerDown, X: 110, Y: 60})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 180, Y: 60})
		require.Equal(t, Panning, v.Phase())

		under := v.Camera().CellAt(180, 60)
		require.Equal(t, grid.Cell{X: 0, Y: 0}, under)
		require.Equal(t, under, last.Cell)
		require.NotNil(t, last.Claim)

		c, ok := v.HoveredCell()
		require.True(t, ok)
		require.Equal(t, under, c)

		v.HandlePointerEvent(PointerEvent{Kind: PointerUp, X: 180, Y: 60})
		require.Empty(t, v.Selection())
	})
}

func TestViewportResize(t *testing.T) {
	v := New(200, 100, 2)
	w, h := v.BackingSize()
	require.Equal(t, 400, w)
	require.Equal(t, 200, h)

	v.Resize(150.7, 80.2, 1.5)
	w, h = v.BackingSize()
	require.Equal(t, 226, w)
	require.Equal(t, 120, h)

	v.Resize(10, 10, 0)
	w, _ = v.BackingSize()
	require.Equal(t, 10, w)
}

func TestViewportCenterOn(t *testing.T) {
	v := newTestViewport()
	v.CenterOn(grid.Point{X: 5, Y: 5})

	p := v.Camera().WorldToScreen(5, 5)
	require.Equal(t, grid.Point{X: 100, Y: 50}, p)
}

type drawOp struct {
	kind  string
	args  []float64
	color color.Color
}

type recordingSurface struct {
	ops []drawOp
}

func (s *recordingSurface) Clear(clr color.Color) {
	s.ops = append(s.ops, drawOp{kind: "clear", color: clr})
}

func (s *recordingSurface) StrokeLine(x0, y0, x1, y1, width float64, clr color.Color) {
	s.ops = append(s.ops, drawOp{kind: "line", args: []float64{x0, y0, x1, y1, width}, color: clr})
}

func (s *recordingSurface) StrokeRect(x, y, w, h, width float64, clr color.Color) {
	s.ops = append(s.ops, drawOp{kind: "rect", args: []float64{x, y, w, h, width}, color: clr})
}

func (s *recordingSurface) FillCircle(cx, cy, r float64, clr color.Color) {
	s.ops = append(s.ops, drawOp{kind: "circle", args: []float64{cx, cy, r}, color: clr})
}

func (s *recordingSurface) filter(kind string, clr color.Color) []drawOp {
	var res []drawOp
	for _, op := range s.ops {
		if op.kind == kind && (clr == nil || op.color == clr) {
			res = append(res, op)
		}
	}
	return res
}

func TestViewportRender(t *testing.T) {
	newScene := func(dpr float64) *Viewport {
		v := New(200, 100, dpr)
		v.SetViewer("u1")
		v.SetClaims([]models.Claim{
			{ID: "mine", OwnerID: "u1", Cells: []grid.Cell{{X: 0, Y: 0}}},
			{ID: "other", OwnerID: "u2", Cells: []grid.Cell{{X: 2, Y: 0}, {X: 3, Y: 0}}},
		})
		return v
	}

	t.Run("draws grid and claims", func(t *testing.T) {
		v := newScene(1)

		var s recordingSurface
		v.Render(&s)

		require.Equal(t, "clear", s.ops[0].kind)
		require.Equal(t, BackgroundColor, s.ops[0].color)

		// x from -4 to 4 and y from -3 to 3.
		require.Len(t, s.filter("line", GridColor), 16)
		require.Len(t, s.filter("line", OwnedClaimColor), 4)
		require.Len(t, s.filter("line", OtherClaimColor), 6)

		circles := s.filter("circle", nil)
		require.Len(t, circles, 2)
		require.InDelta(t, 130, circles[0].args[0], 1e-9)
		require.InDelta(t, 80, circles[0].args[1], 1e-9)
		require.InDelta(t, 3.6, circles[0].args[2], 1e-9)
		require.Equal(t, OwnedCentroidColor, circles[0].color)
		require.Equal(t, OtherCentroidColor, circles[1].color)

		require.Empty(t, s.filter("line", SelectionColor))
		require.Empty(t, s.filter("rect", nil))
	})

	t.Run("draws selection and hover", func(t *testing.T) {
		v := newScene(1)
		v.Toggle(grid.Cell{X: -1, Y: 0})
		v.Toggle(grid.Cell{X: -1, Y: -1})
		v.HandlePointerEvent(PointerEvent{Kind: PointerMove, X: 90, Y: 60})

		var s recordingSurface
		v.Render(&s)

		require.Len(t, s.filter("line", SelectionColor), 6)

		rects := s.filter("rect", nil)
		require.Len(t, rects, 1)
		require.Equal(t, []float64{41, 51, 58, 58, 3}, rects[0].args)
	})

	t.Run("scales to the device pixel ratio", func(t *testing.T) {
		v := newScene(2)

		var s recordingSurface
		v.Render(&s)

		circles := s.filter("circle", nil)
		require.InDelta(t, 260, circles[0].args[0], 1e-9)
		require.InDelta(t, 160, circles[0].args[1], 1e-9)
		require.InDelta(t, 7.2, circles[0].args[2], 1e-9)

		for _, op := range s.filter("line", OwnedClaimColor) {
			require.Equal(t, 6.0, op.args[4])
		}
	})
}
