// Package leaderboard derives cumulative flag-ownership time from
// persisted capture credits plus live accrual on currently held flags.
package leaderboard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"turg.world/internal/sim/world"
)

// Entry is one leaderboard row as served to clients.
type Entry struct {
	Owner   string `json:"owner"`
	Name    string `json:"name"`
	Seconds int64  `json:"seconds"`
}

// Namer resolves a color token to a display name, "" when unknown.
type Namer interface {
	DisplayNameOf(color string) string
}

// Accumulator combines persisted totals with live accrual. Responses
// are cached for a short TTL and never invalidated early; readers see
// eventually-consistent state.
type Accumulator struct {
	store  world.Store
	names  Namer
	bounds world.Box
	ttl    time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   []Entry
	cachedAt time.Time
}

func New(store world.Store, names Namer, bounds world.Box, ttl time.Duration) *Accumulator {
	return &Accumulator{store: store, names: names, bounds: bounds, ttl: ttl, now: time.Now}
}

// NewWithClock is for tests that need a deterministic clock.
func NewWithClock(store world.Store, names Namer, bounds world.Box, ttl time.Duration, now func() time.Time) *Accumulator {
	a := New(store, names, bounds, ttl)
	a.now = now
	return a
}

// Leaders returns entries descending by total seconds; equal totals
// keep first-encounter order (persisted rows first, then live flags in
// query order).
func (a *Accumulator) Leaders(ctx context.Context) ([]Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	if a.cached != nil && now.Sub(a.cachedAt) < a.ttl {
		return append([]Entry(nil), a.cached...), nil
	}

	rows, err := a.store.ReadLeaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}

	totals := make(map[string]int64, len(rows))
	var order []string
	for _, r := range rows {
		if _, seen := totals[r.Owner]; !seen {
			order = append(order, r.Owner)
		}
		totals[r.Owner] += r.Seconds
	}

	// Live accrual: every flag currently held credits its owner with
	// the open ownership window. Never persisted here.
	voxels, err := a.store.FindInBox(ctx, a.bounds)
	if err != nil {
		return nil, fmt.Errorf("scan flags: %w", err)
	}
	nowUnix := now.Unix()
	for _, v := range voxels {
		if !v.IsFlag() || v.Owner == "" {
			continue
		}
		var held int64
		if v.UpdatedAt > 0 && nowUnix > v.UpdatedAt {
			held = nowUnix - v.UpdatedAt
		}
		if _, seen := totals[v.Owner]; !seen {
			order = append(order, v.Owner)
		}
		totals[v.Owner] += held
	}

	entries := make([]Entry, 0, len(order))
	for _, owner := range order {
		name := a.names.DisplayNameOf(owner)
		if name == "" {
			name = owner
		}
		entries = append(entries, Entry{Owner: owner, Name: name, Seconds: totals[owner]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Seconds > entries[j].Seconds
	})

	a.cached = entries
	a.cachedAt = now
	return append([]Entry(nil), entries...), nil
}
