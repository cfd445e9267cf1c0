package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/splatgrid/grid"
	"github.com/aukilabs/splatgrid/models"
	"github.com/segmentio/encoding/json"
	_ "modernc.org/sqlite"
)

// SQLite is a store backed by a SQLite database.
//
// The database is used through a single connection, so transactions are
// serialized. Claimed cells are additionally protected by the primary key of
// the claim_cells table.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at the given path. The ":memory:"
// path opens a private in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("empty sqlite path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.New("creating sqlite directory failed").
				WithTag("path", path).
				Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New("opening sqlite failed").
			WithTag("path", path).
			Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errors.New("setting sqlite pragma failed").
				WithTag("pragma", p).
				Wrap(err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS maps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			resolutions TEXT NOT NULL,
			cell_size_world REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS leases (
			id TEXT PRIMARY KEY,
			map_id TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			cell_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			reserved_by TEXT NOT NULL DEFAULT '',
			reserved_until INTEGER NOT NULL DEFAULT 0,
			claim_id TEXT NOT NULL DEFAULT '',
			UNIQUE (map_id, resolution, cell_index)
		);`,
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			owner_name TEXT NOT NULL,
			name TEXT NOT NULL,
			capture_ref TEXT NOT NULL,
			dim_x REAL NOT NULL,
			dim_y REAL NOT NULL,
			dim_z REAL NOT NULL,
			map_id TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			cell_index INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_claims_map_created ON claims(map_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS claim_cells (
			map_id TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			claim_id TEXT NOT NULL,
			PRIMARY KEY (map_id, resolution, x, y)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_claim_cells_claim ON claim_cells(claim_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return errors.New("creating sqlite schema failed").Wrap(err)
		}
	}
	return nil
}

func (s *SQLite) PutMap(ctx context.Context, m models.Map) error {
	resolutions, err := json.Marshal(m.Resolutions)
	if err != nil {
		return errors.New("encoding map resolutions failed").
			WithTag("map_id", m.ID).
			Wrap(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO maps (id, name, resolutions, cell_size_world) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			resolutions = excluded.resolutions,
			cell_size_world = excluded.cell_size_world`,
		m.ID, m.Name, string(resolutions), m.CellSizeWorld,
	)
	if err != nil {
		return errors.New("storing map failed").
			WithTag("map_id", m.ID).
			Wrap(err)
	}
	return nil
}

func (s *SQLite) Maps(ctx context.Context) ([]models.Map, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, resolutions, cell_size_world FROM maps ORDER BY id`)
	if err != nil {
		return nil, errors.New("querying maps failed").Wrap(err)
	}
	defer rows.Close()

	var maps []models.Map
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New("reading maps failed").Wrap(err)
	}
	return maps, nil
}

func (s *SQLite) Map(ctx context.Context, id string) (models.Map, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, resolutions, cell_size_world FROM maps WHERE id = ?`, id)

	m, err := scanMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Map{}, errMapNotFound(id)
	}
	return m, err
}

func (s *SQLite) SeedLeases(ctx context.Context, mapID string, resolution int) (int, error) {
	created := 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM maps WHERE id = ?`, mapID).Scan(&exists)
		if err != nil {
			return errors.New("querying map failed").Wrap(err)
		}
		if exists == 0 {
			return errMapNotFound(mapID)
		}

		for i := 0; i < resolution; i++ {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO leases (id, map_id, resolution, cell_index, status) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(map_id, resolution, cell_index) DO NOTHING`,
				models.NewID(), mapID, resolution, i, string(models.LeaseEmpty),
			)
			if err != nil {
				return errors.New("inserting lease failed").
					WithTag("map_id", mapID).
					WithTag("index", i).
					Wrap(err)
			}

			n, _ := res.RowsAffected()
			created += int(n)
		}
		return nil
	})
	return created, err
}

func (s *SQLite) Leases(ctx context.Context, mapID string, resolution int, now time.Time) ([]models.Lease, error) {
	var leases []models.Lease

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, map_id, resolution, cell_index, status, reserved_by, reserved_until, claim_id
			FROM leases WHERE map_id = ? AND resolution = ? ORDER BY cell_index`,
			mapID, resolution,
		)
		if err != nil {
			return errors.New("querying leases failed").Wrap(err)
		}

		for rows.Next() {
			l, err := scanLease(rows)
			if err != nil {
				rows.Close()
				return err
			}
			leases = append(leases, l)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return errors.New("reading leases failed").Wrap(err)
		}

		for i := range leases {
			if !leases[i].Sweep(now) {
				continue
			}
			if err := updateLease(ctx, tx, leases[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leases, nil
}

func (s *SQLite) Lease(ctx context.Context, id string) (models.Lease, error) {
	l, err := queryLease(ctx, s.db, `WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Lease{}, errLeaseNotFound(id)
	}
	return l, err
}

func (s *SQLite) Reserve(ctx context.Context, mapID string, resolution, index int, userID string, now, until time.Time) (models.Lease, error) {
	var lease models.Lease

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE leases SET status = ?, reserved_by = ?, reserved_until = ?
			WHERE map_id = ? AND resolution = ? AND cell_index = ?
			AND (status = ? OR (status = ? AND reserved_until <= ?))`,
			string(models.LeaseReserved), userID, until.UnixNano(),
			mapID, resolution, index,
			string(models.LeaseEmpty), string(models.LeaseReserved), now.UnixNano(),
		)
		if err != nil {
			return errors.New("reserving lease failed").
				WithTag("map_id", mapID).
				WithTag("index", index).
				Wrap(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.New("reading reserved rows failed").Wrap(err)
		}

		lease, err = queryLease(ctx, tx, `WHERE map_id = ? AND resolution = ? AND cell_index = ?`, mapID, resolution, index)
		if errors.Is(err, sql.ErrNoRows) {
			return errCellNotFound(mapID, resolution, index)
		}
		if err != nil {
			return err
		}

		if n == 0 {
			return errCellNotAvailable(lease)
		}
		return nil
	})
	if err != nil {
		return models.Lease{}, err
	}
	return lease, nil
}

func (s *SQLite) Attach(ctx context.Context, leaseID, userID string, c models.Claim, now time.Time) (models.Claim, error) {
	var attachErr error

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		l, err := queryLease(ctx, tx, `WHERE id = ?`, leaseID)
		if errors.Is(err, sql.ErrNoRows) {
			return errLeaseNotFound(leaseID)
		}
		if err != nil {
			return err
		}

		if attachErr = checkAttach(l, userID, now); attachErr != nil {
			if l.Sweep(now) {
				return updateLease(ctx, tx, l)
			}
			return nil
		}

		c = fillClaim(c, l)
		if err := insertClaim(ctx, tx, c); err != nil {
			return err
		}

		l.Status = models.LeaseFilled
		l.ReservedBy = ""
		l.ReservedUntil = time.Time{}
		l.ClaimID = c.ID
		return updateLease(ctx, tx, l)
	})
	if err != nil {
		return models.Claim{}, err
	}
	if attachErr != nil {
		return models.Claim{}, attachErr
	}
	return c, nil
}

func (s *SQLite) Claims(ctx context.Context, mapID string) ([]models.Claim, error) {
	rows, err := s.db.QueryContext(ctx, claimSelect+` WHERE map_id = ? ORDER BY created_at, id`, mapID)
	if err != nil {
		return nil, errors.New("querying claims failed").Wrap(err)
	}

	var claims []models.Claim
	positions := make(map[string]int)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		positions[c.ID] = len(claims)
		claims = append(claims, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.New("reading claims failed").Wrap(err)
	}

	cells, err := s.db.QueryContext(ctx, `SELECT claim_id, x, y FROM claim_cells WHERE map_id = ? ORDER BY rowid`, mapID)
	if err != nil {
		return nil, errors.New("querying claim cells failed").Wrap(err)
	}
	defer cells.Close()

	for cells.Next() {
		var claimID string
		var cell grid.Cell
		if err := cells.Scan(&claimID, &cell.X, &cell.Y); err != nil {
			return nil, errors.New("scanning claim cell failed").Wrap(err)
		}

		if i, ok := positions[claimID]; ok {
			claims[i].Cells = append(claims[i].Cells, cell)
		}
	}
	if err := cells.Err(); err != nil {
		return nil, errors.New("reading claim cells failed").Wrap(err)
	}

	if claims == nil {
		claims = []models.Claim{}
	}
	return claims, nil
}

func (s *SQLite) Claim(ctx context.Context, id string) (models.Claim, error) {
	c, err := queryClaim(ctx, s.db, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Claim{}, errClaimNotFound(id)
	}
	return c, err
}

func (s *SQLite) CreateClaim(ctx context.Context, c models.Claim) (models.Claim, error) {
	c.MapID = ""
	c.Resolution = 0
	c.CellIndex = 0

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertClaim(ctx, tx, c)
	})
	if err != nil {
		return models.Claim{}, err
	}
	return c, nil
}

func (s *SQLite) DeleteClaim(ctx context.Context, id, userID string) (models.Claim, error) {
	var c models.Claim

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		c, err = queryClaim(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return errClaimNotFound(id)
		}
		if err != nil {
			return err
		}

		if !c.OwnedBy(userID) {
			return errNotOwner(c, userID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM claim_cells WHERE claim_id = ?`, id); err != nil {
			return errors.New("deleting claim cells failed").
				WithTag("claim_id", id).
				Wrap(err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, id); err != nil {
			return errors.New("deleting claim failed").
				WithTag("claim_id", id).
				Wrap(err)
		}

		if c.Lattice() {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE leases SET status = ?, claim_id = ''
			WHERE map_id = ? AND resolution = ? AND cell_index = ? AND claim_id = ?`,
			string(models.LeaseEmpty), c.MapID, c.Resolution, c.CellIndex, c.ID,
		)
		if err != nil {
			return errors.New("freeing lease failed").
				WithTag("claim_id", id).
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return models.Claim{}, err
	}
	return c, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.New("beginning sqlite transaction failed").Wrap(err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.New("committing sqlite transaction failed").Wrap(err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanMap(row scanner) (models.Map, error) {
	var m models.Map
	var resolutions string

	if err := row.Scan(&m.ID, &m.Name, &resolutions, &m.CellSizeWorld); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Map{}, err
		}
		return models.Map{}, errors.New("scanning map failed").Wrap(err)
	}

	if err := json.Unmarshal([]byte(resolutions), &m.Resolutions); err != nil {
		return models.Map{}, errors.New("decoding map resolutions failed").
			WithTag("map_id", m.ID).
			Wrap(err)
	}
	return m, nil
}

func scanLease(row scanner) (models.Lease, error) {
	var l models.Lease
	var status string
	var reservedUntil int64

	err := row.Scan(
		&l.ID,
		&l.MapID,
		&l.Resolution,
		&l.Index,
		&status,
		&l.ReservedBy,
		&reservedUntil,
		&l.ClaimID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Lease{}, err
		}
		return models.Lease{}, errors.New("scanning lease failed").Wrap(err)
	}

	l.Status = models.LeaseStatus(status)
	if reservedUntil != 0 {
		l.ReservedUntil = time.Unix(0, reservedUntil)
	}
	return l, nil
}

func queryLease(ctx context.Context, q querier, where string, args ...any) (models.Lease, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, map_id, resolution, cell_index, status, reserved_by, reserved_until, claim_id
		FROM leases `+where, args...)
	return scanLease(row)
}

func updateLease(ctx context.Context, tx *sql.Tx, l models.Lease) error {
	var reservedUntil int64
	if !l.ReservedUntil.IsZero() {
		reservedUntil = l.ReservedUntil.UnixNano()
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE leases SET status = ?, reserved_by = ?, reserved_until = ?, claim_id = ?
		WHERE id = ?`,
		string(l.Status), l.ReservedBy, reservedUntil, l.ClaimID, l.ID,
	)
	if err != nil {
		return errors.New("updating lease failed").
			WithTag("lease_id", l.ID).
			Wrap(err)
	}
	return nil
}

const claimSelect = `
	SELECT id, owner_id, owner_name, name, capture_ref, dim_x, dim_y, dim_z,
		map_id, resolution, cell_index, created_at
	FROM claims`

func scanClaim(row scanner) (models.Claim, error) {
	var c models.Claim
	var createdAt int64

	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.OwnerName,
		&c.Name,
		&c.CaptureRef,
		&c.Dimensions.X,
		&c.Dimensions.Y,
		&c.Dimensions.Z,
		&c.MapID,
		&c.Resolution,
		&c.CellIndex,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Claim{}, err
		}
		return models.Claim{}, errors.New("scanning claim failed").Wrap(err)
	}

	c.CreatedAt = time.Unix(0, createdAt)
	return c, nil
}

func queryClaim(ctx context.Context, q querier, id string) (models.Claim, error) {
	c, err := scanClaim(q.QueryRowContext(ctx, claimSelect+` WHERE id = ?`, id))
	if err != nil {
		return models.Claim{}, err
	}

	rows, err := q.QueryContext(ctx, `SELECT x, y FROM claim_cells WHERE claim_id = ? ORDER BY rowid`, id)
	if err != nil {
		return models.Claim{}, errors.New("querying claim cells failed").
			WithTag("claim_id", id).
			Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		var cell grid.Cell
		if err := rows.Scan(&cell.X, &cell.Y); err != nil {
			return models.Claim{}, errors.New("scanning claim cell failed").Wrap(err)
		}
		c.Cells = append(c.Cells, cell)
	}
	if err := rows.Err(); err != nil {
		return models.Claim{}, errors.New("reading claim cells failed").Wrap(err)
	}
	return c, nil
}

// insertClaim checks that none of the claim cells is occupied and inserts the
// claim. It must run in a transaction.
func insertClaim(ctx context.Context, tx *sql.Tx, c models.Claim) error {
	for _, cell := range c.Cells {
		var occupant string
		err := tx.QueryRowContext(ctx, `
			SELECT claim_id FROM claim_cells WHERE map_id = ? AND resolution = ? AND x = ? AND y = ?`,
			c.MapID, c.Resolution, cell.X, cell.Y,
		).Scan(&occupant)

		switch {
		case err == nil:
			return errCellOccupied(occupant, cell)

		case !errors.Is(err, sql.ErrNoRows):
			return errors.New("querying claim cell failed").Wrap(err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO claims (id, owner_id, owner_name, name, capture_ref, dim_x, dim_y, dim_z,
			map_id, resolution, cell_index, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.OwnerName, c.Name, c.CaptureRef,
		c.Dimensions.X, c.Dimensions.Y, c.Dimensions.Z,
		c.MapID, c.Resolution, c.CellIndex, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.New("inserting claim failed").
			WithTag("claim_id", c.ID).
			Wrap(err)
	}

	for _, cell := range c.Cells {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO claim_cells (map_id, resolution, x, y, claim_id) VALUES (?, ?, ?, ?, ?)`,
			c.MapID, c.Resolution, cell.X, cell.Y, c.ID,
		)
		if err != nil {
			return errors.New("inserting claim cell failed").
				WithTag("claim_id", c.ID).
				WithTag("x", cell.X).
				WithTag("y", cell.Y).
				Wrap(err)
		}
	}
	return nil
}
