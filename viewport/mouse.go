package viewport

// MouseState is a snapshot of the mouse taken once per frame by polling
// based UIs.
type MouseState struct {
	X      float64
	Y      float64
	Inside bool

	// The buttons pressed and released since the previous snapshot.
	Pressed  []Button
	Released []Button
}

// PointerEvents returns the pointer events that lead from the previous
// snapshot to the current one.
func PointerEvents(prev, cur MouseState) []PointerEvent {
	var events []PointerEvent

	if !cur.Inside {
		if prev.Inside {
			events = append(events, PointerEvent{Kind: PointerLeave, X: cur.X, Y: cur.Y})
		}
		return events
	}

	if !prev.Inside || prev.X != cur.X || prev.Y != cur.Y {
		events = append(events, PointerEvent{Kind: PointerMove, X: cur.X, Y: cur.Y})
	}

	for _, b := range cur.Pressed {
		events = append(events, PointerEvent{Kind: PointerDown, X: cur.X, Y: cur.Y, Button: b})
	}
	for _, b := range cur.Released {
		events = append(events, PointerEvent{Kind: PointerUp, X: cur.X, Y: cur.Y, Button: b})
	}
	return events
}
