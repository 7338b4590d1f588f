package world

import (
	"context"
	"errors"
)

// Voxel is a single placed unit. Once placed, a plain voxel never
// changes; a flag voxel (non-empty Name) can change owner via capture.
// UpdatedAt is unix seconds UTC of placement or of the last capture and
// marks the start of the current ownership window.
type Voxel struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	Owner     string `json:"owner"`
	Name      string `json:"name,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

func (v Voxel) IsFlag() bool { return v.Name != "" }

// Range is an inclusive coordinate interval.
type Range struct {
	Min, Max int
}

// Box selects voxels with coordinates inside the given inclusive
// ranges. Z is optional; nil means no z filter.
type Box struct {
	X, Y Range
	Z    *Range
}

func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// LeaderboardRow is one persisted per-owner total. Rows come back in
// insertion order (first capture encountered first).
type LeaderboardRow struct {
	Owner   string `json:"owner"`
	Seconds int64  `json:"seconds"`
}

// ErrDuplicate is returned by InsertUnique when the coordinate triple
// is already taken, and by UpdateOwner when the conditional write did
// not match (the flag changed under the caller).
var ErrDuplicate = errors.New("voxel coordinate already occupied")

// Store is the persistence capability the session core consumes. All
// writes are individually atomic; there is deliberately no transaction
// spanning the arbiter's read-decide-write sequence.
type Store interface {
	FindInBox(ctx context.Context, box Box) ([]Voxel, error)
	InsertUnique(ctx context.Context, v Voxel) error
	UpdateOwner(ctx context.Context, x, y, z int, prevOwner, newOwner string, updatedAt int64) error
	IncrementLeaderboard(ctx context.Context, owner string, seconds int64) error
	ReadLeaderboard(ctx context.Context) ([]LeaderboardRow, error)
}
