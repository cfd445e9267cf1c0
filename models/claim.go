package models

import (
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/grid"
)

// Dimensions is the real world size of a capture.
type Dimensions struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// A claim is a named and owned set of cells with an attached capture.
//
// Claims on the unbounded lattice have an empty MapID. Claims filling a
// bounded map cell carry the map, the resolution and the cell index, and hold
// the single cell the index maps to.
type Claim struct {
	ID         string      `json:"id"`
	OwnerID    string      `json:"ownerId"`
	OwnerName  string      `json:"ownerName"`
	Name       string      `json:"name"`
	CaptureRef string      `json:"captureRef"`
	Dimensions Dimensions  `json:"dimensions"`
	Cells      []grid.Cell `json:"cells"`
	MapID      string      `json:"mapId,omitempty"`
	Resolution int         `json:"gridResolution,omitempty"`
	CellIndex  int         `json:"cellIndex"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (c Claim) OwnedBy(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

func (c Claim) Lattice() bool {
	return c.MapID == ""
}

// ClaimCells returns the cells of the given claim. It is the accessor used to
// build occupancy indexes.
func ClaimCells(c Claim) []grid.Cell {
	return c.Cells
}

// Normalize trims the text fields and removes duplicated cells.
func (c *Claim) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.CaptureRef = strings.TrimSpace(c.CaptureRef)
	c.Cells = grid.Dedupe(c.Cells)
}

// Validate reports a missing fields error when the claim has no name, no
// capture reference or no cells.
func (c Claim) Validate() error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.CaptureRef == "" {
		missing = append(missing, "captureRef")
	}
	if len(c.Cells) == 0 {
		missing = append(missing, "cells")
	}

	if len(missing) != 0 {
		return errors.New("missing fields").
			WithType(ErrTypeMissingFields).
			WithTag("fields", strings.Join(missing, ","))
	}
	return nil
}
