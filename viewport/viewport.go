// Package viewport implements the interactive view of the claim grid: the
// camera, the pointer input state machine, the selection and the renderer.
//
// A Viewport is not safe for concurrent use. All its methods are expected to
// be called from the UI goroutine.
package viewport

import (
	"math"

	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
)

// Hover describes what is under the pointer.
type Hover struct {
	// Active is false when the pointer left the viewport.
	Active bool

	Cell    grid.Cell
	Claim   *models.Claim
	ScreenX float64
	ScreenY float64
}

// Viewport holds the camera, claims, selection and gesture state of one grid
// view.
type Viewport struct {
	// Called after a click toggled a cell of the selection.
	OnToggle func(c grid.Cell, selected bool)

	// Called after a click on a cell occupied by a claim.
	OnOpen func(c models.Claim)

	// Called on every pointer move and when the pointer leaves.
	OnHover func(h Hover)

	// Called when the view needs to be drawn again.
	RequestRedraw func()

	camera grid.Camera
	width  float64
	height float64
	dpr    float64

	viewerID       string
	claims         []models.Claim
	index          *grid.Index[models.Claim]
	claimOutlines  [][]grid.Segment
	claimCentroids []grid.Point

	selection        Selection
	selectionOutline []grid.Segment

	hovered   bool
	hoverCell grid.Cell

	gesture gesture
}

// New returns a viewport of the given logical size and device pixel ratio,
// with the camera origin at the center of the view.
func New(width, height, dpr float64) *Viewport {
	v := &Viewport{
		camera: grid.NewCamera(),
	}
	v.Resize(width, height, dpr)
	v.camera.SetOffset(v.width/2, v.height/2)
	return v
}

func (v *Viewport) Camera() grid.Camera {
	return v.camera
}

// CenterOn moves the camera so the given world point is at the center of the
// view.
func (v *Viewport) CenterOn(p grid.Point) {
	v.camera.SetOffset(
		v.width/2-p.X*v.camera.Scale,
		v.height/2-p.Y*v.camera.Scale,
	)
	v.redraw()
}

// Resize sets the logical size of the view and the device pixel ratio used
// to size the backing surface.
func (v *Viewport) Resize(width, height, dpr float64) {
	if dpr <= 0 {
		dpr = 1
	}

	v.width = math.Max(0, width)
	v.height = math.Max(0, height)
	v.dpr = dpr
	v.redraw()
}

// BackingSize returns the size in device pixels of the surface the view is
// rendered on.
func (v *Viewport) BackingSize() (int, int) {
	return int(math.Floor(v.width * v.dpr)), int(math.Floor(v.height * v.dpr))
}

// SetViewer sets the user the view is rendered for. Changing the viewer
// clears the selection.
func (v *Viewport) SetViewer(userID string) {
	if userID == v.viewerID {
		return
	}

	v.viewerID = userID
	v.ClearSelection()
	v.redraw()
}

// SetClaims replaces the claims and rebuilds everything derived from them.
// Selected cells that are now occupied are deselected.
func (v *Viewport) SetClaims(claims []models.Claim) {
	v.claims = claims
	v.index = grid.BuildIndex(claims, models.ClaimCells)

	v.claimOutlines = make([][]grid.Segment, len(claims))
	v.claimCentroids = make([]grid.Point, len(claims))
	for i, c := range claims {
		v.claimOutlines[i] = grid.Outline(c.Cells)
		v.claimCentroids[i] = grid.Centroid(c.Cells)
	}

	if v.selection.prune(v.index.Occupied) {
		v.selectionOutline = grid.Outline(v.selection.Cells())
	}
	v.redraw()
}

// ClaimAt returns the claim occupying the given cell.
func (v *Viewport) ClaimAt(c grid.Cell) (models.Claim, bool) {
	return v.index.Lookup(c)
}

// Toggle flips the selection state of the given cell. Cells occupied by a
// claim are ignored.
func (v *Viewport) Toggle(c grid.Cell) {
	if v.index.Occupied(c) {
		return
	}

	selected := v.selection.Toggle(c)
	v.selectionOutline = grid.Outline(v.selection.Cells())

	if v.OnToggle != nil {
		v.OnToggle(c, selected)
	}
	v.redraw()
}

func (v *Viewport) Selection() []grid.Cell {
	return v.selection.Cells()
}

func (v *Viewport) ClearSelection() {
	if v.selection.Len() == 0 {
		return
	}

	v.selection.Clear()
	v.selectionOutline = nil
	v.redraw()
}

// HoveredCell returns the cell under the pointer.
func (v *Viewport) HoveredCell() (grid.Cell, bool) {
	return v.hoverCell, v.hovered
}

func (v *Viewport) redraw() {
	if v.RequestRedraw != nil {
		v.RequestRedraw()
	}
}
