package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutline(t *testing.T) {
	t.Run("single cell", func(t *testing.T) {
		segments := Outline([]Cell{{0, 0}})
		require.Equal(t, []Segment{
			{Point{0, 0}, Point{1, 0}},
			{Point{1, 0}, Point{1, 1}},
			{Point{1, 1}, Point{0, 1}},
			{Point{0, 1}, Point{0, 0}},
		}, segments)
	})

	t.Run("two by two block", func(t *testing.T) {
		segments := Outline([]Cell{{0, 0}, {1, 0}, {0, 1}, {1, 1}})
		require.Len(t, segments, 8)

		for _, s := range segments {
			onBorder := (s.From.X == s.To.X && (s.From.X == 0 || s.From.X == 2)) ||
				(s.From.Y == s.To.Y && (s.From.Y == 0 || s.From.Y == 2))
			require.True(t, onBorder, "interior segment %v", s)
		}
	})

	t.Run("duplicates are ignored", func(t *testing.T) {
		require.Len(t, Outline([]Cell{{0, 0}, {0, 0}}), 4)
	})

	t.Run("disjoint cells", func(t *testing.T) {
		require.Len(t, Outline([]Cell{{0, 0}, {5, 5}}), 8)
	})

	t.Run("ring with a hole", func(t *testing.T) {
		var cells []Cell
		for x := 0; x < 3; x++ {
			for y := 0; y < 3; y++ {
				if x == 1 && y == 1 {
					continue
				}
				cells = append(cells, Cell{x, y})
			}
		}

		// 12 outer sides and 4 sides around the hole.
		require.Len(t, Outline(cells), 16)
	})

	t.Run("empty", func(t *testing.T) {
		require.Empty(t, Outline(nil))
	})
}

func TestCentroid(t *testing.T) {
	require.Equal(t, Point{}, Centroid(nil))
	require.Equal(t, Point{0.5, 0.5}, Centroid([]Cell{{0, 0}}))
	require.Equal(t, Point{1, 1}, Centroid([]Cell{{0, 0}, {1, 0}, {0, 1}, {1, 1}}))
}
