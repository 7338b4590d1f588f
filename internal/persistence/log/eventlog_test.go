package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"turg.world/internal/sim/world"
)

func TestEventLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewEventLogger(dir)

	v := world.Voxel{X: 1, Y: 2, Z: 0, Owner: "red", Name: "hill", UpdatedAt: 100}
	if err := l.WritePlacement(v, true, "blue", 60); err != nil {
		t.Fatalf("write placement: %v", err)
	}
	if err := l.WritePresence("login", "red", "Alice"); err != nil {
		t.Fatalf("write presence: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "events", "events-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files = %v (%v)", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	if !scanner.Scan() {
		t.Fatal("missing placement line")
	}
	var placement PlacementEntry
	if err := json.Unmarshal(scanner.Bytes(), &placement); err != nil {
		t.Fatalf("decode placement: %v", err)
	}
	if placement.Voxel != v || !placement.Captured || placement.PrevOwner != "blue" || placement.Accrued != 60 {
		t.Fatalf("placement = %+v", placement)
	}

	if !scanner.Scan() {
		t.Fatal("missing presence line")
	}
	var presence PresenceEntry
	if err := json.Unmarshal(scanner.Bytes(), &presence); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if presence.Event != "login" || presence.Color != "red" || presence.Name != "Alice" {
		t.Fatalf("presence = %+v", presence)
	}
}
