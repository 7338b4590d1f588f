package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
max_x: 50
max_y: 60
max_z: 10
requests_per_minute: 5
flags:
  - { x: 10, y: 10, z: 0, name: "hill" }
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.MaxX != 50 || got.MaxY != 60 || got.MaxZ != 10 {
		t.Fatalf("bounds = %d,%d,%d", got.MaxX, got.MaxY, got.MaxZ)
	}
	if got.RequestsPerMinute != 5 {
		t.Fatalf("requests_per_minute = %d", got.RequestsPerMinute)
	}
	// Unset keys keep their defaults.
	if got.DefaultRange != 25 || got.MaxRange != 100 {
		t.Fatalf("range defaults = %d/%d", got.DefaultRange, got.MaxRange)
	}
	if len(got.Flags) != 1 || got.Flags[0].Name != "hill" {
		t.Fatalf("flags = %+v", got.Flags)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	bad := []Tuning{
		func() Tuning { t := Defaults(); t.MaxX = -1; return t }(),
		func() Tuning { t := Defaults(); t.DefaultRange = 0; return t }(),
		func() Tuning { t := Defaults(); t.DefaultRange = t.MaxRange + 1; return t }(),
		func() Tuning { t := Defaults(); t.RequestsPerMinute = 0; return t }(),
		func() Tuning {
			t := Defaults()
			t.Flags = []FlagSeed{{X: 1, Y: 1, Z: 0}}
			return t
		}(),
		func() Tuning {
			t := Defaults()
			t.Flags = []FlagSeed{{X: t.MaxX + 1, Y: 1, Z: 0, Name: "out"}}
			return t
		}(),
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
