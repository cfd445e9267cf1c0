package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCameraTransform(t *testing.T) {
	c := Camera{OffsetX: 17.5, OffsetY: -42, Scale: 37}

	t.Run("screen to world inverts world to screen", func(t *testing.T) {
		for _, w := range []Point{{0, 0}, {1.25, -3.5}, {-100, 250.75}} {
			s := c.WorldToScreen(w.X, w.Y)
			back := c.ScreenToWorld(s.X, s.Y)
			require.True(t, back.EqualWithEpsilon(w, 1e-9))
		}
	})

	t.Run("cell at floors negatives", func(t *testing.T) {
		c := Camera{Scale: 10}
		require.Equal(t, Cell{0, 0}, c.CellAt(5, 5))
		require.Equal(t, Cell{-1, -1}, c.CellAt(-5, -0.1))
		require.Equal(t, Cell{2, -3}, c.CellAt(20, -21))
	})
}

func TestCameraZoom(t *testing.T) {
	t.Run("zoom keeps the point under the cursor", func(t *testing.T) {
		c := Camera{OffsetX: 100, OffsetY: 50, Scale: DefaultScale}
		before := c.ScreenToWorld(320, 240)

		c.ZoomAt(320, 240, -120)
		after := c.ScreenToWorld(320, 240)
		require.True(t, before.EqualWithEpsilon(after, 1e-9))
		require.Greater(t, c.Scale, DefaultScale)

		c.ZoomAt(320, 240, 240)
		after = c.ScreenToWorld(320, 240)
		require.True(t, before.EqualWithEpsilon(after, 1e-9))
	})

	t.Run("scale is clamped", func(t *testing.T) {
		c := NewCamera()
		for i := 0; i < 50; i++ {
			c.ZoomAt(0, 0, -1000)
		}
		require.Equal(t, MaxScale, c.Scale)

		for i := 0; i < 50; i++ {
			c.ZoomAt(0, 0, 1000)
		}
		require.Equal(t, MinScale, c.Scale)
	})

	t.Run("clamped zoom keeps the cursor anchor", func(t *testing.T) {
		c := Camera{OffsetX: 3, OffsetY: 9, Scale: MaxScale}
		before := c.ScreenToWorld(77, 13)
		c.ZoomAt(77, 13, -500)
		require.Equal(t, MaxScale, c.Scale)
		require.True(t, before.EqualWithEpsilon(c.ScreenToWorld(77, 13), 1e-9))
	})

	t.Run("set scale clamps", func(t *testing.T) {
		c := NewCamera()
		c.SetScale(1)
		require.Equal(t, MinScale, c.Scale)
		c.SetScale(1000)
		require.Equal(t, MaxScale, c.Scale)
	})
}

func TestVisibleWindow(t *testing.T) {
	c := Camera{OffsetX: 15, OffsetY: 0, Scale: 10}
	r := c.VisibleWindow(100, 50, 2)

	require.Equal(t, Point{X: -4, Y: -2}, r.Min)
	require.Equal(t, Point{X: 11, Y: 7}, r.Max)
	require.Equal(t, 15.0, r.Width())
	require.Equal(t, 9.0, r.Height())
}
