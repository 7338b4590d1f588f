// Package arbiter validates and commits voxel placements against
// neighboring state, including flag-capture semantics.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"turg.world/internal/protocol"
	"turg.world/internal/sim/world"
)

// Gameplay constants. The capture reach (5) and the flag buffer (4)
// are independently tunable rules, not one rule with two names; keep
// them separate.
const (
	neighborhoodRadius = 5
	flagBuffer         = 4
)

// ConflictError is a domain rejection with the client-facing message
// and the voxels that caused it.
type ConflictError struct {
	Message  string
	Conflict []world.Voxel
}

func (e *ConflictError) Error() string { return e.Message }

// Result is an accepted placement. On capture, PrevOwner and
// AccruedSeconds describe the leaderboard credit that was persisted.
type Result struct {
	Voxel          world.Voxel
	Captured       bool
	PrevOwner      string
	AccruedSeconds int64
}

type Arbiter struct {
	store world.Store
	now   func() time.Time
}

func New(store world.Store) *Arbiter {
	return &Arbiter{store: store, now: time.Now}
}

// NewWithClock is for tests that need a deterministic clock.
func NewWithClock(store world.Store, now func() time.Time) *Arbiter {
	return &Arbiter{store: store, now: now}
}

// Place runs the placement checks in their fixed order: occupancy (or
// capture), proximity, support, flag adjacency. There is deliberately
// no lock across the read-decide-write sequence; two racers at the
// same coordinate are arbitrated by the store's unique insert, and the
// loser comes back with a SpaceOccupied conflict.
func (a *Arbiter) Place(ctx context.Context, candidate world.Voxel) (Result, error) {
	box := world.Box{
		X: world.Range{Min: candidate.X - neighborhoodRadius, Max: candidate.X + neighborhoodRadius},
		Y: world.Range{Min: candidate.Y - neighborhoodRadius, Max: candidate.Y + neighborhoodRadius},
		Z: &world.Range{Min: candidate.Z - neighborhoodRadius, Max: candidate.Z + neighborhoodRadius},
	}
	neighbors, err := a.store.FindInBox(ctx, box)
	if err != nil {
		return Result{}, fmt.Errorf("fetch neighborhood: %w", err)
	}

	if occ, ok := at(neighbors, candidate.X, candidate.Y, candidate.Z); ok {
		if occ.IsFlag() && occ.Owner != candidate.Owner {
			return a.capture(ctx, candidate, occ, neighbors)
		}
		return Result{}, &ConflictError{Message: protocol.MsgOccupied, Conflict: []world.Voxel{occ}}
	}

	immediate := within(neighbors, candidate, 1)

	var foreign []world.Voxel
	for _, n := range immediate {
		if n.Owner != candidate.Owner {
			foreign = append(foreign, n)
		}
	}
	if len(foreign) > 0 {
		return Result{}, &ConflictError{Message: protocol.MsgTooClose, Conflict: foreign}
	}

	if candidate.Z != 0 && !supported(immediate, candidate) {
		return Result{}, &ConflictError{Message: protocol.MsgNoSupport, Conflict: immediate}
	}

	var flags []world.Voxel
	for _, n := range within(neighbors, candidate, flagBuffer) {
		if n.IsFlag() {
			flags = append(flags, n)
		}
	}
	if len(flags) > 0 {
		return Result{}, &ConflictError{Message: protocol.MsgNextToFlag, Conflict: flags}
	}

	placed := candidate
	placed.Name = ""
	placed.UpdatedAt = a.now().UTC().Unix()
	if err := a.store.InsertUnique(ctx, placed); err != nil {
		if err == world.ErrDuplicate {
			// Lost the race to a concurrent placement.
			return Result{}, &ConflictError{Message: protocol.MsgOccupied}
		}
		return Result{}, fmt.Errorf("insert voxel: %w", err)
	}
	return Result{Voxel: placed}, nil
}

// capture transfers flag ownership. The capturer must already hold a
// voxel inside the fetched neighborhood; the previous owner is
// credited with the elapsed ownership window before the conditional
// owner swap.
func (a *Arbiter) capture(ctx context.Context, candidate, flag world.Voxel, neighbors []world.Voxel) (Result, error) {
	reachable := false
	for _, n := range neighbors {
		if n.Owner == candidate.Owner {
			reachable = true
			break
		}
	}
	if !reachable {
		return Result{}, &ConflictError{Message: protocol.MsgTooFarFromFlag, Conflict: []world.Voxel{flag}}
	}

	now := a.now().UTC().Unix()
	var accrued int64
	if flag.UpdatedAt > 0 && now > flag.UpdatedAt {
		accrued = now - flag.UpdatedAt
	}
	// A seeded flag that was never claimed has no previous owner to
	// credit.
	if flag.Owner != "" {
		if err := a.store.IncrementLeaderboard(ctx, flag.Owner, accrued); err != nil {
			return Result{}, fmt.Errorf("credit leaderboard: %w", err)
		}
	}
	if err := a.store.UpdateOwner(ctx, flag.X, flag.Y, flag.Z, flag.Owner, candidate.Owner, now); err != nil {
		if err == world.ErrDuplicate {
			// The flag changed hands while we were deciding.
			return Result{}, &ConflictError{Message: protocol.MsgOccupied, Conflict: []world.Voxel{flag}}
		}
		return Result{}, fmt.Errorf("capture flag: %w", err)
	}

	captured := flag
	captured.Owner = candidate.Owner
	captured.UpdatedAt = now
	return Result{
		Voxel:          captured,
		Captured:       true,
		PrevOwner:      flag.Owner,
		AccruedSeconds: accrued,
	}, nil
}

func at(vs []world.Voxel, x, y, z int) (world.Voxel, bool) {
	for _, v := range vs {
		if v.X == x && v.Y == y && v.Z == z {
			return v, true
		}
	}
	return world.Voxel{}, false
}

// within filters to voxels at Chebyshev distance <= r from c,
// excluding c's own coordinate.
func within(vs []world.Voxel, c world.Voxel, r int) []world.Voxel {
	var out []world.Voxel
	for _, v := range vs {
		if v.X == c.X && v.Y == c.Y && v.Z == c.Z {
			continue
		}
		if abs(v.X-c.X) <= r && abs(v.Y-c.Y) <= r && abs(v.Z-c.Z) <= r {
			out = append(out, v)
		}
	}
	return out
}

// supported reports whether c shares two of three coordinates with any
// immediate neighbor, i.e. sits face-adjacent along a principal plane.
func supported(immediate []world.Voxel, c world.Voxel) bool {
	for _, n := range immediate {
		same := 0
		if n.X == c.X {
			same++
		}
		if n.Y == c.Y {
			same++
		}
		if n.Z == c.Z {
			same++
		}
		if same >= 2 {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
