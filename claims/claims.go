// Package claims implements claims on the unbounded lattice: a claim is
// accepted when none of its cells is already claimed.
package claims

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/store"
)

// Publisher is notified after the claims or cells of a map changed. The
// lattice uses an empty map id.
type Publisher interface {
	Publish(noticeType, mapID string)
}

// Registry creates, lists and deletes claims.
type Registry struct {
	Store store.Store

	// The maximum number of cells of a claim. Zero means no limit.
	MaxCells int

	// Returns the current time. Defaults to time.Now.
	Now func() time.Time

	Publisher Publisher
}

// CreateRequest is a request to claim cells of the lattice.
type CreateRequest struct {
	Name       string            `json:"name"`
	CaptureRef string            `json:"captureRef"`
	Dimensions models.Dimensions `json:"dimensions"`
	Cells      []grid.Cell       `json:"cells"`
}

// List returns the claims on the lattice ordered by creation.
func (r *Registry) List(ctx context.Context) ([]models.Claim, error) {
	return r.Store.Claims(ctx, "")
}

// ListMap returns the claims filling the cells of a bounded map.
func (r *Registry) ListMap(ctx context.Context, mapID string) ([]models.Claim, error) {
	if _, err := r.Store.Map(ctx, mapID); err != nil {
		return nil, err
	}
	return r.Store.Claims(ctx, mapID)
}

func (r *Registry) Get(ctx context.Context, id string) (models.Claim, error) {
	return r.Store.Claim(ctx, id)
}

// Create validates the request and claims its cells for the given user.
// Duplicated cells are removed. It fails with a cell occupied error when any
// cell is already claimed.
func (r *Registry) Create(ctx context.Context, u models.User, req CreateRequest) (models.Claim, error) {
	c := models.Claim{
		ID:         models.NewID(),
		OwnerID:    u.ID,
		OwnerName:  u.Name,
		Name:       req.Name,
		CaptureRef: req.CaptureRef,
		Dimensions: req.Dimensions,
		Cells:      req.Cells,
		CreatedAt:  r.now(),
	}
	c.Normalize()

	if err := c.Validate(); err != nil {
		return models.Claim{}, err
	}

	if r.MaxCells > 0 && len(c.Cells) > r.MaxCells {
		return models.Claim{}, errors.New("too many cells").
			WithType(models.ErrTypeInvalidRequest).
			WithTag("cells", len(c.Cells)).
			WithTag("max", r.MaxCells)
	}

	c, err := r.Store.CreateClaim(ctx, c)
	instrumentCreate(err)
	if err != nil {
		if errors.IsType(err, models.ErrTypeCellOccupied) {
			logs.WithTag("user_id", u.ID).
				WithTag("cells", len(req.Cells)).
				Debug("claim conflicts with an existing claim")
		}
		return models.Claim{}, err
	}

	logs.WithTag("claim_id", c.ID).
		WithTag("user_id", u.ID).
		WithTag("cells", len(c.Cells)).
		Info("claim created")

	r.publish(models.FeedClaimsChanged, "")
	return c, nil
}

// Delete deletes a claim owned by the given user. A claim filling a bounded
// map cell frees the cell.
func (r *Registry) Delete(ctx context.Context, u models.User, id string) (models.Claim, error) {
	c, err := r.Store.DeleteClaim(ctx, id, u.ID)
	instrumentDelete(err)
	if err != nil {
		return models.Claim{}, err
	}

	logs.WithTag("claim_id", c.ID).
		WithTag("user_id", u.ID).
		WithTag("map_id", c.MapID).
		Info("claim deleted")

	if c.Lattice() {
		r.publish(models.FeedClaimsChanged, "")
	} else {
		r.publish(models.FeedCellsChanged, c.MapID)
	}
	return c, nil
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) publish(noticeType, mapID string) {
	if r.Publisher != nil {
		r.Publisher.Publish(noticeType, mapID)
	}
}
