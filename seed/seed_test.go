package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/store"
	"github.com/stretchr/testify/require"
)

const mapsYAML = `
maps:
  - id: starter-town
    name: Starter Town
    resolutions: [9]
    cellSizeWorld: 10
  - id: harbor
    name: Harbor
    resolutions: [4, 16]
    cellSizeWorld: 5
`

func TestLoad(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		cfg, err := Load("")
		require.NoError(t, err)
		require.Len(t, cfg.Maps, 1)
		require.Equal(t, "Starter Town", cfg.Maps[0].Name)
		require.Equal(t, []int{9}, cfg.Maps[0].Resolutions)
	})

	t.Run("load a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "maps.yaml")
		require.NoError(t, os.WriteFile(path, []byte(mapsYAML), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Len(t, cfg.Maps, 2)
		require.Equal(t, "harbor", cfg.Maps[1].ID)
		require.Equal(t, []int{4, 16}, cfg.Maps[1].Resolutions)
		require.Equal(t, 5.0, cfg.Maps[1].CellSizeWorld)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("maps: {"))
		require.True(t, errors.IsType(err, models.ErrTypeInvalidRequest))
	})

	t.Run("non square resolution", func(t *testing.T) {
		_, err := Parse([]byte("maps:\n  - id: a\n    name: A\n    resolutions: [8]\n"))
		require.True(t, errors.IsType(err, models.ErrTypeInvalidRequest))
	})

	t.Run("duplicated map", func(t *testing.T) {
		_, err := Parse([]byte("maps:\n  - id: a\n    name: A\n    resolutions: [9]\n  - id: a\n    name: B\n    resolutions: [9]\n"))
		require.True(t, errors.IsType(err, models.ErrTypeInvalidRequest))
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	cfg, err := Parse([]byte(mapsYAML))
	require.NoError(t, err)
	require.NoError(t, Seed(ctx, s, cfg))

	now := time.Now()
	leases, err := s.Leases(ctx, "harbor", 16, now)
	require.NoError(t, err)
	require.Len(t, leases, 16)

	_, err = s.Reserve(ctx, "starter-town", 9, 0, "u1", now, now.Add(time.Minute))
	require.NoError(t, err)

	require.NoError(t, Seed(ctx, s, cfg))

	leases, err = s.Leases(ctx, "starter-town", 9, now)
	require.NoError(t, err)
	require.Len(t, leases, 9)
	require.Equal(t, models.LeaseReserved, leases[0].Status)

	maps, err := s.Maps(ctx)
	require.NoError(t, err)
	require.Len(t, maps, 2)
}
