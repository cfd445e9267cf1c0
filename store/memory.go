package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
)

type leaseKey struct {
	mapID      string
	resolution int
	index      int
}

type cellKey struct {
	mapID      string
	resolution int
	cell       grid.Cell
}

// Memory is a store that keeps everything in memory. A single mutex
// serializes all the operations.
type Memory struct {
	mutex     sync.Mutex
	maps      map[string]models.Map
	leases    map[string]*models.Lease
	leaseIDs  map[leaseKey]string
	claims    map[string]models.Claim
	occupancy map[cellKey]string
}

func NewMemory() *Memory {
	return &Memory{
		maps:      make(map[string]models.Map),
		leases:    make(map[string]*models.Lease),
		leaseIDs:  make(map[leaseKey]string),
		claims:    make(map[string]models.Claim),
		occupancy: make(map[cellKey]string),
	}
}

func (m *Memory) PutMap(ctx context.Context, v models.Map) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.maps[v.ID] = v
	return nil
}

func (m *Memory) Maps(ctx context.Context) ([]models.Map, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	maps := make([]models.Map, 0, len(m.maps))
	for _, v := range m.maps {
		maps = append(maps, v)
	}
	sort.Slice(maps, func(i, j int) bool {
		return maps[i].ID < maps[j].ID
	})
	return maps, nil
}

func (m *Memory) Map(ctx context.Context, id string) (models.Map, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	v, ok := m.maps[id]
	if !ok {
		return models.Map{}, errMapNotFound(id)
	}
	return v, nil
}

func (m *Memory) SeedLeases(ctx context.Context, mapID string, resolution int) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.maps[mapID]; !ok {
		return 0, errMapNotFound(mapID)
	}

	created := 0
	for i := 0; i < resolution; i++ {
		k := leaseKey{mapID: mapID, resolution: resolution, index: i}
		if _, ok := m.leaseIDs[k]; ok {
			continue
		}

		l := &models.Lease{
			ID:         models.NewID(),
			MapID:      mapID,
			Resolution: resolution,
			Index:      i,
			Status:     models.LeaseEmpty,
		}
		m.leases[l.ID] = l
		m.leaseIDs[k] = l.ID
		created++
	}
	return created, nil
}

func (m *Memory) Leases(ctx context.Context, mapID string, resolution int, now time.Time) ([]models.Lease, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var leases []models.Lease
	for k, id := range m.leaseIDs {
		if k.mapID != mapID || k.resolution != resolution {
			continue
		}

		l := m.leases[id]
		l.Sweep(now)
		leases = append(leases, *l)
	}

	sort.Slice(leases, func(i, j int) bool {
		return leases[i].Index < leases[j].Index
	})
	return leases, nil
}

func (m *Memory) Lease(ctx context.Context, id string) (models.Lease, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	l, ok := m.leases[id]
	if !ok {
		return models.Lease{}, errLeaseNotFound(id)
	}
	return *l, nil
}

func (m *Memory) Reserve(ctx context.Context, mapID string, resolution, index int, userID string, now, until time.Time) (models.Lease, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id, ok := m.leaseIDs[leaseKey{mapID: mapID, resolution: resolution, index: index}]
	if !ok {
		return models.Lease{}, errCellNotFound(mapID, resolution, index)
	}

	l := m.leases[id]
	l.Sweep(now)
	if l.Status != models.LeaseEmpty {
		return models.Lease{}, errCellNotAvailable(*l)
	}

	l.Status = models.LeaseReserved
	l.ReservedBy = userID
	l.ReservedUntil = until
	return *l, nil
}

func (m *Memory) Attach(ctx context.Context, leaseID, userID string, c models.Claim, now time.Time) (models.Claim, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	l, ok := m.leases[leaseID]
	if !ok {
		return models.Claim{}, errLeaseNotFound(leaseID)
	}

	if err := checkAttach(*l, userID, now); err != nil {
		l.Sweep(now)
		return models.Claim{}, err
	}

	c = fillClaim(c, *l)
	for _, cell := range c.Cells {
		k := cellKey{mapID: c.MapID, resolution: c.Resolution, cell: cell}
		if id, ok := m.occupancy[k]; ok {
			return models.Claim{}, errCellOccupied(id, cell)
		}
	}
	m.insertClaim(c)

	l.Status = models.LeaseFilled
	l.ReservedBy = ""
	l.ReservedUntil = time.Time{}
	l.ClaimID = c.ID
	return c, nil
}

func (m *Memory) Claims(ctx context.Context, mapID string) ([]models.Claim, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	claims := make([]models.Claim, 0, len(m.claims))
	for _, c := range m.claims {
		if c.MapID == mapID {
			claims = append(claims, c)
		}
	}
	sortClaims(claims)
	return claims, nil
}

func (m *Memory) Claim(ctx context.Context, id string) (models.Claim, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return models.Claim{}, errClaimNotFound(id)
	}
	return c, nil
}

func (m *Memory) CreateClaim(ctx context.Context, c models.Claim) (models.Claim, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c.MapID = ""
	c.Resolution = 0
	c.CellIndex = 0

	for _, cell := range c.Cells {
		if id, ok := m.occupancy[cellKey{cell: cell}]; ok {
			return models.Claim{}, errCellOccupied(id, cell)
		}
	}

	m.insertClaim(c)
	return c, nil
}

func (m *Memory) DeleteClaim(ctx context.Context, id, userID string) (models.Claim, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	c, ok := m.claims[id]
	if !ok {
		return models.Claim{}, errClaimNotFound(id)
	}
	if !c.OwnedBy(userID) {
		return models.Claim{}, errNotOwner(c, userID)
	}

	delete(m.claims, id)
	for _, cell := range c.Cells {
		delete(m.occupancy, cellKey{mapID: c.MapID, resolution: c.Resolution, cell: cell})
	}

	if !c.Lattice() {
		k := leaseKey{mapID: c.MapID, resolution: c.Resolution, index: c.CellIndex}
		if l, ok := m.leases[m.leaseIDs[k]]; ok && l.ClaimID == c.ID {
			l.Status = models.LeaseEmpty
			l.ClaimID = ""
		}
	}
	return c, nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) insertClaim(c models.Claim) {
	c.Cells = append([]grid.Cell(nil), c.Cells...)
	m.claims[c.ID] = c
	for _, cell := range c.Cells {
		m.occupancy[cellKey{mapID: c.MapID, resolution: c.Resolution, cell: cell}] = c.ID
	}
}

func sortClaims(claims []models.Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.Before(claims[j].CreatedAt)
		}
		return claims[i].ID < claims[j].ID
	})
}
