package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the runtime knobs loaded from tuning.yaml. World bounds
// and rate limits are operator-tunable; gameplay constants (flag buffer,
// capture reach) are not and live in the arbiter.
type Tuning struct {
	MaxX int `yaml:"max_x"`
	MaxY int `yaml:"max_y"`
	MaxZ int `yaml:"max_z"`

	DefaultRange int `yaml:"default_range"`
	MaxRange     int `yaml:"max_range"`

	RequestsPerMinute int `yaml:"requests_per_minute"`

	LeaderboardTTLSeconds int `yaml:"leaderboard_ttl_s"`
	PingIntervalSeconds   int `yaml:"ping_interval_s"`

	Flags []FlagSeed `yaml:"flags"`
}

// FlagSeed is an operator-placed capturable flag inserted at startup.
type FlagSeed struct {
	X    int    `yaml:"x"`
	Y    int    `yaml:"y"`
	Z    int    `yaml:"z"`
	Name string `yaml:"name"`
}

func Defaults() Tuning {
	return Tuning{
		MaxX:                  1000,
		MaxY:                  1000,
		MaxZ:                  100,
		DefaultRange:          25,
		MaxRange:              100,
		RequestsPerMinute:     60,
		LeaderboardTTLSeconds: 5,
		PingIntervalSeconds:   30,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.MaxX < 0 || t.MaxY < 0 || t.MaxZ < 0 {
		return fmt.Errorf("world bounds must be >= 0 (got %d,%d,%d)", t.MaxX, t.MaxY, t.MaxZ)
	}
	if t.MaxRange <= 0 {
		return fmt.Errorf("max_range must be > 0 (got %d)", t.MaxRange)
	}
	if t.DefaultRange <= 0 || t.DefaultRange > t.MaxRange {
		return fmt.Errorf("default_range must be in (0, max_range] (got %d)", t.DefaultRange)
	}
	if t.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be > 0 (got %d)", t.RequestsPerMinute)
	}
	for _, f := range t.Flags {
		if f.Name == "" {
			return fmt.Errorf("flag at (%d,%d,%d) has empty name", f.X, f.Y, f.Z)
		}
		if f.X < 0 || f.X > t.MaxX || f.Y < 0 || f.Y > t.MaxY || f.Z < 0 || f.Z > t.MaxZ {
			return fmt.Errorf("flag %q at (%d,%d,%d) outside world bounds", f.Name, f.X, f.Y, f.Z)
		}
	}
	return nil
}
