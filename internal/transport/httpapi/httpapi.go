// Package httpapi serves the thin read-only listing endpoints. They
// consume the same storage and leaderboard capabilities as the session
// core and hold no state of their own.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"turg.world/internal/sim/leaderboard"
	"turg.world/internal/sim/tuning"
	"turg.world/internal/sim/world"
)

type API struct {
	tuning  tuning.Tuning
	store   world.Store
	leaders *leaderboard.Accumulator
	log     *log.Logger
}

func New(t tuning.Tuning, store world.Store, leaders *leaderboard.Accumulator, logger *log.Logger) *API {
	return &API{tuning: t, store: store, leaders: leaders, log: logger}
}

func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/voxels/", a.handleVoxels)
	mux.HandleFunc("/v1/leaderboard/", a.handleLeaderboard)
}

func (a *API) handleVoxels(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	x := intParam(r, "x", 0)
	y := intParam(r, "y", 0)
	radius := intParam(r, "range", a.tuning.DefaultRange)
	if radius <= 0 {
		radius = a.tuning.DefaultRange
	}
	if radius > a.tuning.MaxRange {
		radius = a.tuning.MaxRange
	}

	box := world.Box{
		X: world.Range{Min: x - radius + 1, Max: x + radius - 1},
		Y: world.Range{Min: y - radius + 1, Max: y + radius - 1},
	}
	voxels, err := a.store.FindInBox(r.Context(), box)
	if err != nil {
		a.log.Printf("voxels query: %v", err)
		http.Error(rw, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if voxels == nil {
		voxels = []world.Voxel{}
	}
	writeJSON(rw, voxels)
}

func (a *API) handleLeaderboard(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := a.leaders.Leaders(r.Context())
	if err != nil {
		a.log.Printf("leaderboard query: %v", err)
		http.Error(rw, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(rw, entries)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.Header().Set("Access-Control-Allow-Origin", "*")
	rw.Header().Set("Access-Control-Expose-Headers", "*")
	_ = json.NewEncoder(rw).Encode(v)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
