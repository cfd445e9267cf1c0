// Package seed loads the bounded map definitions and seeds their cells.
package seed

import (
	"context"
	"os"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/store"
	"gopkg.in/yaml.v3"
)

// Config lists the bounded maps to seed.
type Config struct {
	Maps []models.Map `yaml:"maps"`
}

// Default returns the starter map: a 3x3 grid.
func Default() Config {
	return Config{
		Maps: []models.Map{
			{
				ID:            "starter-town",
				Name:          "Starter Town",
				Resolutions:   []int{9},
				CellSizeWorld: 10,
			},
		},
	}
}

// Load reads a YAML maps file. An empty path returns the default config.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New("reading maps file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return Parse(b)
}

// Parse decodes and validates a YAML maps definition.
func Parse(b []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, errors.New("decoding maps failed").
			WithType(models.ErrTypeInvalidRequest).
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Maps))

	for _, m := range c.Maps {
		if err := m.Validate(); err != nil {
			return err
		}

		if _, ok := seen[m.ID]; ok {
			return errors.New("duplicated map id").
				WithType(models.ErrTypeInvalidRequest).
				WithTag("id", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return nil
}

// Seed stores the maps and creates their missing empty cells. Running it
// again does not change existing cells.
func Seed(ctx context.Context, s store.Store, cfg Config) error {
	for _, m := range cfg.Maps {
		if err := s.PutMap(ctx, m); err != nil {
			return err
		}

		for _, r := range m.Resolutions {
			created, err := s.SeedLeases(ctx, m.ID, r)
			if err != nil {
				return err
			}

			logs.WithTag("map_id", m.ID).
				WithTag("resolution", r).
				WithTag("created_cells", created).
				Info("map seeded")
		}
	}
	return nil
}
