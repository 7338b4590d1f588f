package voxeldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"turg.world/internal/sim/world"
)

// DB implements the world.Store capability on sqlite. Every write is a
// single atomic statement; uniqueness of the coordinate triple is
// enforced by the primary key, never by application locking.
type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL keeps concurrent readers off the writer's back.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS voxels (
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			owner TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (x, y, z)
		);`,
		`CREATE TABLE IF NOT EXISTS leaderboard (
			pos INTEGER PRIMARY KEY AUTOINCREMENT,
			owner TEXT NOT NULL UNIQUE,
			seconds INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_voxels_flags ON voxels(name) WHERE name <> '';`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error { return d.db.Close() }

func (d *DB) FindInBox(ctx context.Context, box world.Box) ([]world.Voxel, error) {
	q := `SELECT x, y, z, owner, name, updated_at FROM voxels
		WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ?`
	args := []any{box.X.Min, box.X.Max, box.Y.Min, box.Y.Max}
	if box.Z != nil {
		q += ` AND z BETWEEN ? AND ?`
		args = append(args, box.Z.Min, box.Z.Max)
	}
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("find in box: %w", err)
	}
	defer rows.Close()

	var out []world.Voxel
	for rows.Next() {
		var v world.Voxel
		if err := rows.Scan(&v.X, &v.Y, &v.Z, &v.Owner, &v.Name, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// InsertUnique relies on the (x,y,z) primary key: the second of two
// racing inserts loses with world.ErrDuplicate.
func (d *DB) InsertUnique(ctx context.Context, v world.Voxel) error {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO voxels (x, y, z, owner, name, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.X, v.Y, v.Z, v.Owner, v.Name, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert voxel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return world.ErrDuplicate
	}
	return nil
}

// UpdateOwner is the capture write: conditional on the flag still being
// owned by prevOwner, so a racing capture loses with world.ErrDuplicate
// instead of silently double-counting.
func (d *DB) UpdateOwner(ctx context.Context, x, y, z int, prevOwner, newOwner string, updatedAt int64) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE voxels SET owner = ?, updated_at = ? WHERE x = ? AND y = ? AND z = ? AND owner = ? AND name <> ''`,
		newOwner, updatedAt, x, y, z, prevOwner)
	if err != nil {
		return fmt.Errorf("update owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return world.ErrDuplicate
	}
	return nil
}

func (d *DB) IncrementLeaderboard(ctx context.Context, owner string, seconds int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO leaderboard (owner, seconds) VALUES (?, ?)
		ON CONFLICT(owner) DO UPDATE SET seconds = seconds + excluded.seconds`,
		owner, seconds)
	if err != nil {
		return fmt.Errorf("increment leaderboard: %w", err)
	}
	return nil
}

func (d *DB) ReadLeaderboard(ctx context.Context) ([]world.LeaderboardRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT owner, seconds FROM leaderboard ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	defer rows.Close()

	var out []world.LeaderboardRow
	for rows.Next() {
		var r world.LeaderboardRow
		if err := rows.Scan(&r.Owner, &r.Seconds); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
