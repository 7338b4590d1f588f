package session

import "sync"

// Registry is the single source of truth for the one-session-per-color
// invariant. All mutations are serialized under one mutex so eviction,
// registration and removal never interleave.
type Registry struct {
	mu      sync.Mutex
	byColor map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{byColor: make(map[string]*Session)}
}

// Register admits s, evicting any prior session for the same color.
// Last login wins: the evicted session is closed before s becomes
// visible, and is returned so the caller can log it.
func (r *Registry) Register(s *Session) (evicted *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.byColor[s.Color]
	if prev != nil && prev != s {
		prev.Close()
		evicted = prev
	}
	r.byColor[s.Color] = s
	return evicted
}

// Unregister removes s unless a newer session already replaced it.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byColor[s.Color] == s {
		delete(r.byColor, s.Color)
	}
}

// AllSessions returns a point-in-time snapshot of the live set.
func (r *Registry) AllSessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.byColor))
	for _, s := range r.byColor {
		out = append(out, s)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byColor)
}
