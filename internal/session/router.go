package session

import (
	"log"

	"turg.world/internal/protocol"
)

// Location is where an event happened; nil means a global event
// (login, logout) delivered to everyone.
type Location struct {
	X, Y int
}

// Router fans an event out to every session whose viewport covers it.
// Delivery is best-effort per recipient: a failed send is logged and
// never evicts the session or aborts the rest of the fan-out.
type Router struct {
	reg *Registry
	log *log.Logger
}

func NewRouter(reg *Registry, logger *log.Logger) *Router {
	return &Router{reg: reg, log: logger}
}

func (rt *Router) Broadcast(kind string, data any, loc *Location) {
	env := protocol.Event(kind, data)
	b, err := env.Encode()
	if err != nil {
		rt.log.Printf("broadcast %s: encode: %v", kind, err)
		return
	}
	for _, s := range rt.reg.AllSessions() {
		if !wants(s, loc) {
			continue
		}
		if err := s.Send(b); err != nil {
			rt.log.Printf("broadcast %s to %s: %v", kind, s.Color, err)
		}
	}
}

// wants applies the viewport filter: no viewport receives everything;
// otherwise the event point must fall strictly inside the open
// rectangle (x-r, x+r) x (y-r, y+r).
func wants(s *Session, loc *Location) bool {
	if loc == nil {
		return true
	}
	vp, ok := s.CurrentViewport()
	if !ok {
		return true
	}
	return loc.X > vp.X-vp.Radius && loc.X < vp.X+vp.Radius &&
		loc.Y > vp.Y-vp.Radius && loc.Y < vp.Y+vp.Radius
}
