// Package log appends world events (placements, captures, presence) as
// zstd-compressed JSONL, rotated hourly. Writes are best-effort from
// the caller's point of view: an audit failure never fails a request.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"turg.world/internal/sim/world"
)

// PlacementEntry records an accepted placement or capture.
type PlacementEntry struct {
	TS        string      `json:"ts"`
	Voxel     world.Voxel `json:"voxel"`
	Captured  bool        `json:"captured,omitempty"`
	PrevOwner string      `json:"prev_owner,omitempty"`
	Accrued   int64       `json:"accrued_s,omitempty"`
}

// PresenceEntry records a login, logout or eviction.
type PresenceEntry struct {
	TS    string `json:"ts"`
	Event string `json:"event"`
	Color string `json:"color"`
	Name  string `json:"name,omitempty"`
}

// EventLogger writes one JSONL entry per event into hourly zstd files.
type EventLogger struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewEventLogger(dataDir string) *EventLogger {
	return &EventLogger{baseDir: filepath.Join(dataDir, "events"), prefix: "events"}
}

func (l *EventLogger) WritePlacement(v world.Voxel, captured bool, prevOwner string, accrued int64) error {
	return l.write(PlacementEntry{
		TS:        time.Now().UTC().Format(time.RFC3339),
		Voxel:     v,
		Captured:  captured,
		PrevOwner: prevOwner,
		Accrued:   accrued,
	})
}

func (l *EventLogger) WritePresence(event, color, name string) error {
	return l.write(PresenceEntry{
		TS:    time.Now().UTC().Format(time.RFC3339),
		Event: event,
		Color: color,
		Name:  name,
	})
}

func (l *EventLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *EventLogger) write(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != l.curHour {
		if err := l.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := l.w.Write(b); err != nil {
		return err
	}
	if err := l.w.WriteByte('\n'); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *EventLogger) rotateLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	path := filepath.Join(l.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", l.prefix, hour))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f = f
	l.enc = enc
	l.w = bufio.NewWriterSize(enc, 128*1024)
	l.curHour = hour
	return nil
}

func (l *EventLogger) closeLocked() error {
	var err1 error
	if l.w != nil {
		_ = l.w.Flush()
	}
	if l.enc != nil {
		err1 = l.enc.Close()
		l.enc = nil
	}
	if l.f != nil {
		_ = l.f.Close()
		l.f = nil
	}
	l.w = nil
	return err1
}
