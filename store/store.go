// Package store persists maps, cell leases and claims.
//
// Implementations own the operations that must be atomic: the reservation
// compare and swap, the fill of a reserved cell and the check then insert of
// a claim against the cells already occupied.
package store

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
)

type Store interface {
	// Stores a map, replacing the one with the same id.
	PutMap(ctx context.Context, m models.Map) error

	// Returns the maps ordered by id.
	Maps(ctx context.Context) ([]models.Map, error)

	Map(ctx context.Context, id string) (models.Map, error)

	// Creates the missing empty leases of a map at the given resolution and
	// returns how many were created.
	SeedLeases(ctx context.Context, mapID string, resolution int) (int, error)

	// Returns the leases of a map at the given resolution ordered by index,
	// after returning lapsed reservations to empty.
	Leases(ctx context.Context, mapID string, resolution int, now time.Time) ([]models.Lease, error)

	Lease(ctx context.Context, id string) (models.Lease, error)

	// Reserves an empty cell for the given user until the given time. It
	// fails with a cell not available error when the cell is not empty.
	Reserve(ctx context.Context, mapID string, resolution, index int, userID string, now, until time.Time) (models.Lease, error)

	// Fills the cell reserved by the given user with the given claim.
	Attach(ctx context.Context, leaseID, userID string, c models.Claim, now time.Time) (models.Claim, error)

	// Returns the claims of the given map ordered by creation. An empty map
	// id returns the claims on the unbounded lattice.
	Claims(ctx context.Context, mapID string) ([]models.Claim, error)

	Claim(ctx context.Context, id string) (models.Claim, error)

	// Inserts a claim on the lattice unless one of its cells is occupied.
	CreateClaim(ctx context.Context, c models.Claim) (models.Claim, error)

	// Deletes a claim owned by the given user. A cell of a bounded map is
	// returned to empty.
	DeleteClaim(ctx context.Context, id, userID string) (models.Claim, error)

	Close() error
}

func errMapNotFound(id string) error {
	return errors.New("map not found").
		WithType(models.ErrTypeMapNotFound).
		WithTag("map_id", id)
}

func errCellNotFound(mapID string, resolution, index int) error {
	return errors.New("cell not found").
		WithType(models.ErrTypeCellNotFound).
		WithTag("map_id", mapID).
		WithTag("resolution", resolution).
		WithTag("index", index)
}

func errLeaseNotFound(id string) error {
	return errors.New("cell not found").
		WithType(models.ErrTypeCellNotFound).
		WithTag("lease_id", id)
}

func errCellNotAvailable(l models.Lease) error {
	return errors.New("cell not available").
		WithType(models.ErrTypeCellNotAvailable).
		WithTag("map_id", l.MapID).
		WithTag("index", l.Index).
		WithTag("status", l.Status)
}

func errNotYourReservation(l models.Lease, userID string) error {
	return errors.New("not your reserved cell").
		WithType(models.ErrTypeNotYourReservation).
		WithTag("lease_id", l.ID).
		WithTag("user_id", userID)
}

func errReservationExpired(l models.Lease) error {
	return errors.New("reservation expired").
		WithType(models.ErrTypeReservationExpired).
		WithTag("lease_id", l.ID).
		WithTag("status", l.Status)
}

func errClaimNotFound(id string) error {
	return errors.New("claim not found").
		WithType(models.ErrTypeClaimNotFound).
		WithTag("claim_id", id)
}

func errNotOwner(c models.Claim, userID string) error {
	return errors.New("not the claim owner").
		WithType(models.ErrTypeNotOwner).
		WithTag("claim_id", c.ID).
		WithTag("user_id", userID)
}

func errCellOccupied(claimID string, cell grid.Cell) error {
	return errors.New("cell already claimed").
		WithType(models.ErrTypeCellOccupied).
		WithTag("cell", cell.Key()).
		WithTag("claim_id", claimID)
}

// checkAttach returns the error attaching to the given lease fails with, if
// any.
func checkAttach(l models.Lease, userID string, now time.Time) error {
	switch {
	case l.Status == models.LeaseFilled:
		return errCellNotAvailable(l)

	case l.Status != models.LeaseReserved:
		return errReservationExpired(l)

	case l.ReservedBy != userID:
		return errNotYourReservation(l, userID)

	case l.Lapsed(now):
		return errReservationExpired(l)

	default:
		return nil
	}
}

// fillClaim sets the fields a bounded map claim takes from its lease.
func fillClaim(c models.Claim, l models.Lease) models.Claim {
	c.MapID = l.MapID
	c.Resolution = l.Resolution
	c.CellIndex = l.Index
	c.Cells = []grid.Cell{l.Cell()}
	return c
}
