package viewport

import (
	"math"
)

// DragThreshold is the distance in pixels the pointer must travel with the
// primary button down before the gesture becomes a pan.
const DragThreshold = 3.0

type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
	PointerLeave
)

// PointerEvent is a raw pointer event in logical pixels relative to the top
// left corner of the view.
type PointerEvent struct {
	Kind   PointerKind
	X      float64
	Y      float64
	Button Button
}

type Phase int

const (
	Idle Phase = iota
	Armed
	Panning
)

func (p Phase) String() string {
	switch p {
	case Armed:
		return "armed"
	case Panning:
		return "panning"
	default:
		return "idle"
	}
}

type gesture struct {
	phase        Phase
	startX       float64
	startY       float64
	startOffsetX float64
	startOffsetY float64

	// Set once the gesture became a pan. A panned gesture never clicks.
	panned bool
}

func (v *Viewport) Phase() Phase {
	return v.gesture.phase
}

// HandlePointerEvent advances the input state machine with the given event.
func (v *Viewport) HandlePointerEvent(e PointerEvent) {
	switch e.Kind {
	case PointerDown:
		v.pointerDown(e)

	case PointerMove:
		v.pointerMove(e)

	case PointerUp:
		v.pointerUp(e)

	case PointerLeave:
		v.pointerLeave()
	}
}

// HandleWheel zooms around the given screen position. A pan in progress
// continues from the zoomed camera.
func (v *Viewport) HandleWheel(x, y, deltaY float64) {
	v.camera.ZoomAt(x, y, deltaY)

	if v.gesture.phase != Idle {
		v.gesture.startX = x
		v.gesture.startY = y
		v.gesture.startOffsetX = v.camera.OffsetX
		v.gesture.startOffsetY = v.camera.OffsetY
	}
	v.redraw()
}

func (v *Viewport) pointerDown(e PointerEvent) {
	v.gesture = gesture{
		phase:        Armed,
		startX:       e.X,
		startY:       e.Y,
		startOffsetX: v.camera.OffsetX,
		startOffsetY: v.camera.OffsetY,
	}

	if e.Button != ButtonPrimary {
		v.gesture.phase = Panning
		v.gesture.panned = true
	}
}

// pointerMove pans before updating the hover so the hovered cell is the one
// under the pointer with the moved camera.
func (v *Viewport) pointerMove(e PointerEvent) {
	switch v.gesture.phase {
	case Armed:
		dx := e.X - v.gesture.startX
		dy := e.Y - v.gesture.startY
		if math.Hypot(dx, dy) > DragThreshold {
			v.gesture.phase = Panning
			v.gesture.panned = true
			v.pan(e.X, e.Y)
		}

	case Panning:
		v.pan(e.X, e.Y)
	}

	v.updateHover(e.X, e.Y)
}

func (v *Viewport) pointerUp(e PointerEvent) {
	click := v.gesture.phase == Armed && !v.gesture.panned
	v.gesture = gesture{}

	if !click {
		return
	}

	c := v.camera.CellAt(e.X, e.Y)
	if claim, ok := v.index.Lookup(c); ok {
		if v.OnOpen != nil {
			v.OnOpen(claim)
		}
		return
	}
	v.Toggle(c)
}

func (v *Viewport) pointerLeave() {
	v.gesture = gesture{}

	if !v.hovered {
		return
	}

	v.hovered = false
	if v.OnHover != nil {
		v.OnHover(Hover{})
	}
	v.redraw()
}

func (v *Viewport) pan(x, y float64) {
	v.camera.SetOffset(
		v.gesture.startOffsetX+(x-v.gesture.startX),
		v.gesture.startOffsetY+(y-v.gesture.startY),
	)
	v.redraw()
}

func (v *Viewport) updateHover(x, y float64) {
	c := v.camera.CellAt(x, y)
	changed := !v.hovered || c != v.hoverCell
	v.hovered = true
	v.hoverCell = c

	if v.OnHover != nil {
		h := Hover{
			Active:  true,
			Cell:    c,
			ScreenX: x,
			ScreenY: y,
		}
		if claim, ok := v.index.Lookup(c); ok {
			h.Claim = &claim
		}
		v.OnHover(h)
	}

	if changed {
		v.redraw()
	}
}
