// Package lease implements the cell lease state machine of bounded maps.
//
// A cell goes from empty to reserved when a user reserves it, from reserved to
// filled when the same user attaches a capture before the reservation
// lapses, and back to empty when the claim filling it is deleted. Lapsed
// reservations return to empty when cells are read.
package lease

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/splatgrid/models"
	"github.com/aukilabs/splatgrid/store"
)

// Publisher is notified after the cells or claims of a map changed.
type Publisher interface {
	Publish(noticeType, mapID string)
}

// Manager runs the lease state machine on top of a store.
type Manager struct {
	Store store.Store

	// The duration a reservation holds a cell. Defaults to
	// models.DefaultReservationTTL.
	TTL time.Duration

	// Returns the current time. Defaults to time.Now.
	Now func() time.Time

	Publisher Publisher
}

// AttachRequest is a request to fill a reserved cell with a capture.
type AttachRequest struct {
	MapID      string            `json:"mapId"`
	CellID     string            `json:"cellId"`
	CaptureRef string            `json:"captureRef"`
	Name       string            `json:"name"`
	Dimensions models.Dimensions `json:"dimensions"`
}

func (m *Manager) Maps(ctx context.Context) ([]models.Map, error) {
	return m.Store.Maps(ctx)
}

// Cells returns the cells of a map at the given resolution ordered by index.
// A zero resolution selects the map resolution when the map has only one.
func (m *Manager) Cells(ctx context.Context, mapID string, resolution int) ([]models.Lease, error) {
	resolution, err := m.resolution(ctx, mapID, resolution)
	if err != nil {
		return nil, err
	}
	return m.Store.Leases(ctx, mapID, resolution, m.now())
}

// Reserve reserves an empty cell for the given user. Losing the race for a
// cell is reported as a cell not available error. The resolution defaults
// like in Cells.
func (m *Manager) Reserve(ctx context.Context, u models.User, mapID string, resolution, index int) (models.Lease, error) {
	resolution, err := m.resolution(ctx, mapID, resolution)
	if err != nil {
		return models.Lease{}, err
	}

	if index < 0 || index >= resolution {
		return models.Lease{}, errors.New("cell index out of range").
			WithType(models.ErrTypeCellNotFound).
			WithTag("map_id", mapID).
			WithTag("resolution", resolution).
			WithTag("index", index)
	}

	now := m.now()
	l, err := m.Store.Reserve(ctx, mapID, resolution, index, u.ID, now, now.Add(m.ttl()))
	instrumentReservation(mapID, err)
	if err != nil {
		if errors.IsType(err, models.ErrTypeCellNotAvailable) {
			logs.WithTag("map_id", mapID).
				WithTag("index", index).
				WithTag("user_id", u.ID).
				Debug("cell reservation lost")
		}
		return models.Lease{}, err
	}

	logs.WithTag("map_id", mapID).
		WithTag("resolution", resolution).
		WithTag("index", index).
		WithTag("user_id", u.ID).
		Info("cell reserved")

	m.publish(models.FeedCellsChanged, mapID)
	return l, nil
}

// Attach fills the cell reserved by the given user with a new claim.
func (m *Manager) Attach(ctx context.Context, u models.User, req AttachRequest) (models.Claim, error) {
	req.MapID = strings.TrimSpace(req.MapID)
	req.CellID = strings.TrimSpace(req.CellID)
	req.CaptureRef = strings.TrimSpace(req.CaptureRef)

	if req.MapID == "" || req.CellID == "" || req.CaptureRef == "" {
		return models.Claim{}, errors.New("missing mapId, cellId or captureRef").
			WithType(models.ErrTypeMissingFields)
	}

	l, err := m.Store.Lease(ctx, req.CellID)
	if err != nil {
		return models.Claim{}, err
	}
	if l.MapID != req.MapID {
		return models.Claim{}, errors.New("cell not found").
			WithType(models.ErrTypeCellNotFound).
			WithTag("map_id", req.MapID).
			WithTag("lease_id", req.CellID)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		mp, err := m.Store.Map(ctx, l.MapID)
		if err != nil {
			return models.Claim{}, err
		}
		name = mp.Name + " #" + strconv.Itoa(l.Index+1)
	}

	now := m.now()
	c, err := m.Store.Attach(ctx, l.ID, u.ID, models.Claim{
		ID:         models.NewID(),
		OwnerID:    u.ID,
		OwnerName:  u.Name,
		Name:       name,
		CaptureRef: req.CaptureRef,
		Dimensions: req.Dimensions,
		CreatedAt:  now,
	}, now)
	instrumentAttach(req.MapID, err)
	if err != nil {
		return models.Claim{}, err
	}

	logs.WithTag("map_id", c.MapID).
		WithTag("index", c.CellIndex).
		WithTag("claim_id", c.ID).
		WithTag("user_id", u.ID).
		Info("cell filled")

	m.publish(models.FeedCellsChanged, c.MapID)
	return c, nil
}

func (m *Manager) resolution(ctx context.Context, mapID string, resolution int) (int, error) {
	mp, err := m.Store.Map(ctx, mapID)
	if err != nil {
		return 0, err
	}

	if resolution == 0 && len(mp.Resolutions) == 1 {
		return mp.Resolutions[0], nil
	}

	if !mp.HasResolution(resolution) {
		return 0, errors.New("unsupported grid resolution").
			WithType(models.ErrTypeInvalidRequest).
			WithTag("map_id", mapID).
			WithTag("resolution", resolution)
	}
	return resolution, nil
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return models.DefaultReservationTTL
}

func (m *Manager) publish(noticeType, mapID string) {
	if m.Publisher != nil {
		m.Publisher.Publish(noticeType, mapID)
	}
}
