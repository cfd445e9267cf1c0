package models

import (
	"time"

	"github.com/aukilabs/splatgrid/grid"
)

type LeaseStatus string

const (
	LeaseEmpty    LeaseStatus = "empty"
	LeaseReserved LeaseStatus = "reserved"
	LeaseFilled   LeaseStatus = "filled"
)

// DefaultReservationTTL is how long a reservation holds a cell.
const DefaultReservationTTL = 5 * time.Minute

// A lease is the state of one cell of a bounded map at a given resolution.
type Lease struct {
	ID            string
	MapID         string
	Resolution    int
	Index         int
	Status        LeaseStatus
	ReservedBy    string
	ReservedUntil time.Time
	ClaimID       string
}

// Lapsed reports whether the lease is a reservation whose deadline has
// passed.
func (l Lease) Lapsed(now time.Time) bool {
	return l.Status == LeaseReserved && !now.Before(l.ReservedUntil)
}

// Sweep returns a lapsed reservation to the empty state. It reports whether
// the lease changed.
func (l *Lease) Sweep(now time.Time) bool {
	if !l.Lapsed(now) {
		return false
	}

	l.Status = LeaseEmpty
	l.ReservedBy = ""
	l.ReservedUntil = time.Time{}
	instrumentSweep(l.MapID)
	return true
}

// Cell returns the cell the lease index maps to.
func (l Lease) Cell() grid.Cell {
	side, _ := grid.Side(l.Resolution)
	return grid.IndexToCell(l.Index, side)
}
