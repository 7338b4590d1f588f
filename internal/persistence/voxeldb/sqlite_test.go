package voxeldb

import (
	"context"
	"path/filepath"
	"testing"

	"turg.world/internal/sim/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "turg.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertUniqueRejectsDuplicateCoordinate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v := world.Voxel{X: 1, Y: 2, Z: 3, Owner: "red", UpdatedAt: 100}
	if err := db.InsertUnique(ctx, v); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	v.Owner = "blue"
	if err := db.InsertUnique(ctx, v); err != world.ErrDuplicate {
		t.Fatalf("second insert err = %v, want ErrDuplicate", err)
	}

	got, err := db.FindInBox(ctx, world.Box{
		X: world.Range{Min: 1, Max: 1},
		Y: world.Range{Min: 2, Max: 2},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 1 || got[0].Owner != "red" {
		t.Fatalf("duplicate insert mutated the row: %+v", got)
	}
}

func TestFindInBoxFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, v := range []world.Voxel{
		{X: 0, Y: 0, Z: 0, Owner: "red"},
		{X: 5, Y: 5, Z: 2, Owner: "red"},
		{X: 20, Y: 20, Z: 0, Owner: "blue"},
	} {
		if err := db.InsertUnique(ctx, v); err != nil {
			t.Fatalf("insert %+v: %v", v, err)
		}
	}

	got, err := db.FindInBox(ctx, world.Box{
		X: world.Range{Min: 0, Max: 10},
		Y: world.Range{Min: 0, Max: 10},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("xy box matched %d voxels, want 2", len(got))
	}

	z := world.Range{Min: 0, Max: 0}
	got, err = db.FindInBox(ctx, world.Box{
		X: world.Range{Min: 0, Max: 10},
		Y: world.Range{Min: 0, Max: 10},
		Z: &z,
	})
	if err != nil {
		t.Fatalf("find with z: %v", err)
	}
	if len(got) != 1 || got[0].X != 0 {
		t.Fatalf("z filter matched %+v", got)
	}
}

func TestUpdateOwnerIsConditional(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	flag := world.Voxel{X: 7, Y: 7, Z: 0, Owner: "blue", Name: "hill", UpdatedAt: 100}
	if err := db.InsertUnique(ctx, flag); err != nil {
		t.Fatalf("insert flag: %v", err)
	}

	if err := db.UpdateOwner(ctx, 7, 7, 0, "blue", "red", 200); err != nil {
		t.Fatalf("capture update: %v", err)
	}
	// A second capture conditioned on the stale owner must lose.
	if err := db.UpdateOwner(ctx, 7, 7, 0, "blue", "green", 300); err != world.ErrDuplicate {
		t.Fatalf("stale capture err = %v, want ErrDuplicate", err)
	}

	got, err := db.FindInBox(ctx, world.Box{
		X: world.Range{Min: 7, Max: 7},
		Y: world.Range{Min: 7, Max: 7},
	})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got[0].Owner != "red" || got[0].UpdatedAt != 200 {
		t.Fatalf("flag after capture: %+v", got[0])
	}
}

func TestUpdateOwnerRefusesNonFlag(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.InsertUnique(ctx, world.Voxel{X: 1, Y: 1, Z: 0, Owner: "red"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.UpdateOwner(ctx, 1, 1, 0, "red", "blue", 200); err != world.ErrDuplicate {
		t.Fatalf("non-flag update err = %v, want ErrDuplicate", err)
	}
}

func TestLeaderboardIncrementAndOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.IncrementLeaderboard(ctx, "red", 10); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := db.IncrementLeaderboard(ctx, "blue", 5); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := db.IncrementLeaderboard(ctx, "red", 7); err != nil {
		t.Fatalf("increment: %v", err)
	}

	rows, err := db.ReadLeaderboard(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	// Insertion order, totals accumulated and never overwritten.
	if rows[0].Owner != "red" || rows[0].Seconds != 17 {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Owner != "blue" || rows[1].Seconds != 5 {
		t.Fatalf("row 1 = %+v", rows[1])
	}
}
