package models

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/grid"
)

// A map is a bounded grid whose cells are leased before being filled.
type Map struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Resolutions   []int   `json:"resolutions" yaml:"resolutions"`
	CellSizeWorld float64 `json:"cellSizeWorld" yaml:"cellSizeWorld"`
}

func (m Map) HasResolution(r int) bool {
	for _, v := range m.Resolutions {
		if v == r {
			return true
		}
	}
	return false
}

// Validate checks the map has an id, a name and only square resolutions.
func (m Map) Validate() error {
	if m.ID == "" || m.Name == "" {
		return errors.New("map id and name are required").
			WithType(ErrTypeMissingFields).
			WithTag("id", m.ID)
	}

	if len(m.Resolutions) == 0 {
		return errors.New("map has no resolution").
			WithType(ErrTypeMissingFields).
			WithTag("id", m.ID)
	}

	for _, r := range m.Resolutions {
		if _, ok := grid.Side(r); !ok {
			return errors.New("map resolution is not a square").
				WithType(ErrTypeInvalidRequest).
				WithTag("id", m.ID).
				WithTag("resolution", r)
		}
	}
	return nil
}
