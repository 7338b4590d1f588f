package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// UserRecord is one directory entry from the backing source.
type UserRecord struct {
	Color string `json:"color"`
	Name  string `json:"name"`
}

// Source supplies the full user table. Refreshed lazily on a color
// miss, never on a schedule.
type Source interface {
	FetchUsers(ctx context.Context) (map[string]UserRecord, error)
}

// CachedDirectory caches the user table in memory and refreshes from
// its Source when asked for a color it does not know.
type CachedDirectory struct {
	src Source

	mu      sync.RWMutex
	users   map[string]UserRecord
	byColor map[string]string
}

func NewCachedDirectory(src Source) *CachedDirectory {
	return &CachedDirectory{
		src:     src,
		users:   make(map[string]UserRecord),
		byColor: make(map[string]string),
	}
}

func (d *CachedDirectory) ColorOf(ctx context.Context, userID string) (string, error) {
	d.mu.RLock()
	rec, ok := d.users[userID]
	d.mu.RUnlock()
	if ok && rec.Color != "" {
		return rec.Color, nil
	}

	if err := d.refresh(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	d.mu.RLock()
	rec, ok = d.users[userID]
	d.mu.RUnlock()
	if !ok || rec.Color == "" {
		return "", ErrUnknownUser
	}
	return rec.Color, nil
}

func (d *CachedDirectory) DisplayNameOf(color string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byColor[color]
}

// RecordName stores the display name learned from a verified token so
// logout broadcasts and the leaderboard can resolve it later.
func (d *CachedDirectory) RecordName(userID, name string) {
	if name == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := d.users[userID]
	rec.Name = name
	d.users[userID] = rec
	if rec.Color != "" {
		d.byColor[rec.Color] = name
	}
}

func (d *CachedDirectory) refresh(ctx context.Context) error {
	fetched, err := d.src.FetchUsers(ctx)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for uid, rec := range fetched {
		cur := d.users[uid]
		if rec.Color != "" {
			cur.Color = rec.Color
		}
		if rec.Name != "" {
			cur.Name = rec.Name
		}
		d.users[uid] = cur
		if cur.Color != "" && cur.Name != "" {
			d.byColor[cur.Color] = cur.Name
		}
	}
	return nil
}

// StaticSource serves a fixed user table (config-seeded or tests).
type StaticSource map[string]UserRecord

func (s StaticSource) FetchUsers(ctx context.Context) (map[string]UserRecord, error) {
	return s, nil
}

// HTTPSource fetches the user table as a JSON object keyed by user id
// from a single URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) FetchUsers(ctx context.Context) (map[string]UserRecord, error) {
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user directory: unexpected status %d", resp.StatusCode)
	}
	var users map[string]UserRecord
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("user directory: decode: %w", err)
	}
	return users, nil
}
