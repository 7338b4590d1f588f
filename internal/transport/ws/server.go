// Package ws drives one websocket session end-to-end: authenticate,
// evict-and-register, pump frames, clean up.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"turg.world/internal/auth"
	persistlog "turg.world/internal/persistence/log"
	"turg.world/internal/protocol"
	"turg.world/internal/session"
	"turg.world/internal/sim/arbiter"
	"turg.world/internal/sim/tuning"
	"turg.world/internal/sim/world"
)

const (
	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

type Config struct {
	Tuning   tuning.Tuning
	Store    world.Store
	Arbiter  *arbiter.Arbiter
	Auth     auth.Authenticator
	Dir      auth.Directory
	Registry *session.Registry
	Router   *session.Router
	Limiter  *session.RateLimiter
	Audit    *persistlog.EventLogger // optional
	Log      *log.Logger
}

type Server struct {
	cfg Config

	upgrader websocket.Upgrader
}

func NewServer(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Handler authenticates before upgrading so bad credentials get a real
// 401 instead of a doomed socket.
func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		identity, color, ok := s.authenticate(rw, r)
		if !ok {
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sess := session.NewSession(identity.UserID, identity.Name, color, 64)
		sess.SetPing(func() error {
			return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		})

		if evicted := s.cfg.Registry.Register(sess); evicted != nil {
			s.cfg.Log.Printf("session %s: evicted prior connection", color)
			s.audit("evicted", evicted.Color, evicted.Name)
		}

		name := identity.Name
		if name == "" {
			name = color
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine: sole writer of data frames on this conn.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-sess.Out():
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						sess.Close()
						return
					}
				}
			}
		}()

		// Eviction watcher: a blocked ReadMessage only returns once the
		// socket dies, so close it when the registry closes the session.
		go func() {
			select {
			case <-ctx.Done():
			case <-sess.Done():
				_ = conn.Close()
			}
		}()

		s.reply(sess, nil, protocol.TypeUserColor, protocol.UserColor{Color: color})
		s.cfg.Router.Broadcast(protocol.TypeUserLogin, protocol.UserPresence{Name: name}, nil)
		s.audit("login", color, name)

		s.readLoop(ctx, conn, sess)

		// Closing -> Closed: drop from the live set, announce, release.
		cancel()
		s.cfg.Registry.Unregister(sess)
		sess.Close()
		s.cfg.Router.Broadcast(protocol.TypeUserLogout, protocol.UserPresence{Name: name}, nil)
		s.audit("logout", color, name)
	}
}

func (s *Server) authenticate(rw http.ResponseWriter, r *http.Request) (auth.Identity, string, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	identity, err := s.cfg.Auth.Authenticate(token)
	if err != nil {
		http.Error(rw, "unauthorized", http.StatusUnauthorized)
		return auth.Identity{}, "", false
	}
	s.cfg.Dir.RecordName(identity.UserID, identity.Name)

	color, err := s.cfg.Dir.ColorOf(r.Context(), identity.UserID)
	if err != nil {
		if err == auth.ErrUnknownUser {
			http.Error(rw, "unauthorized", http.StatusUnauthorized)
		} else {
			http.Error(rw, "identity backend unavailable", http.StatusServiceUnavailable)
		}
		return auth.Identity{}, "", false
	}
	return identity, color, true
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readWait))
	})
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		// Every frame hits the limiter before anything else, even ones
		// that will not decode: garbage must spend budget too.
		if !s.cfg.Limiter.Allow(sess.Color) {
			s.replyError(sess, nil, protocol.MsgRateLimited(s.cfg.Limiter.Limit()), nil)
			continue
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.replyError(sess, nil, protocol.MsgInvalidPayload, nil)
			continue
		}
		if frame.Type == protocol.TypeClose {
			return
		}

		switch frame.Type {
		case protocol.TypeRange:
			s.handleRange(ctx, sess, frame)
		case protocol.TypeUpdate:
			s.handleUpdate(ctx, sess, frame)
		default:
			s.replyError(sess, frame.ID, protocol.MsgUnknownType, nil)
		}
	}
}

func (s *Server) handleRange(ctx context.Context, sess *session.Session, frame protocol.Frame) {
	if !protocol.ValidRangeArgs(frame.Args) {
		s.replyError(sess, frame.ID, protocol.MsgInvalidPayload, nil)
		return
	}
	var args protocol.RangeArgs
	if err := json.Unmarshal(frame.Args, &args); err != nil {
		s.replyError(sess, frame.ID, protocol.MsgInvalidPayload, nil)
		return
	}

	radius := args.Range
	if radius <= 0 {
		radius = s.cfg.Tuning.DefaultRange
	}
	if radius > s.cfg.Tuning.MaxRange {
		radius = s.cfg.Tuning.MaxRange
	}

	// Strict open interval on both axes, no z filter.
	box := world.Box{
		X: world.Range{Min: args.X - radius + 1, Max: args.X + radius - 1},
		Y: world.Range{Min: args.Y - radius + 1, Max: args.Y + radius - 1},
	}
	voxels, err := s.cfg.Store.FindInBox(ctx, box)
	if err != nil {
		s.cfg.Log.Printf("session %s: range query: %v", sess.Color, err)
		s.replyError(sess, frame.ID, protocol.MsgStorageFailure, nil)
		return
	}
	if voxels == nil {
		voxels = []world.Voxel{}
	}

	sess.SetViewport(session.Viewport{X: args.X, Y: args.Y, Radius: radius})
	s.reply(sess, frame.ID, protocol.TypeRange, voxels)
}

func (s *Server) handleUpdate(ctx context.Context, sess *session.Session, frame protocol.Frame) {
	if !protocol.ValidUpdateArgs(frame.Args) {
		s.replyError(sess, frame.ID, protocol.MsgInvalidPayload, nil)
		return
	}
	var args protocol.UpdateArgs
	if err := json.Unmarshal(frame.Args, &args); err != nil {
		s.replyError(sess, frame.ID, protocol.MsgInvalidPayload, nil)
		return
	}
	t := s.cfg.Tuning
	if args.X > t.MaxX || args.Y > t.MaxY || args.Z > t.MaxZ {
		s.replyError(sess, frame.ID, protocol.MsgInvalidPayload, nil)
		return
	}

	// Never trust the client: owner is the authenticated color and
	// name is dropped (clients cannot mint flags).
	candidate := world.Voxel{X: args.X, Y: args.Y, Z: args.Z, Owner: sess.Color}

	res, err := s.cfg.Arbiter.Place(ctx, candidate)
	if err != nil {
		if conflict, ok := err.(*arbiter.ConflictError); ok {
			s.replyError(sess, frame.ID, conflict.Message, conflict.Conflict)
			return
		}
		s.cfg.Log.Printf("session %s: place (%d,%d,%d): %v", sess.Color, args.X, args.Y, args.Z, err)
		s.replyError(sess, frame.ID, protocol.MsgStorageFailure, nil)
		return
	}

	loc := &session.Location{X: res.Voxel.X, Y: res.Voxel.Y}
	s.cfg.Router.Broadcast(protocol.TypeUpdate, res.Voxel, loc)
	if res.Captured {
		name := sess.Name
		if name == "" {
			name = sess.Color
		}
		s.cfg.Router.Broadcast(protocol.TypeFlagCaptured,
			protocol.FlagCaptured{User: name, Flag: res.Voxel.Name}, nil)
	}
	if s.cfg.Audit != nil {
		if err := s.cfg.Audit.WritePlacement(res.Voxel, res.Captured, res.PrevOwner, res.AccruedSeconds); err != nil {
			s.cfg.Log.Printf("audit placement: %v", err)
		}
	}
}

// RunPingSweep probes every live session on a fixed interval. One dead
// peer must never stall or abort the sweep.
func (s *Server) RunPingSweep(ctx context.Context) {
	interval := time.Duration(s.cfg.Tuning.PingIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sess := range s.cfg.Registry.AllSessions() {
				if err := sess.Ping(); err != nil {
					s.cfg.Log.Printf("ping %s: %v", sess.Color, err)
				}
			}
		}
	}
}

func (s *Server) reply(sess *session.Session, id json.RawMessage, kind string, data any) {
	b, err := protocol.Reply(id, kind, data).Encode()
	if err != nil {
		s.cfg.Log.Printf("reply %s: encode: %v", kind, err)
		return
	}
	if err := sess.Send(b); err != nil {
		s.cfg.Log.Printf("reply %s to %s: %v", kind, sess.Color, err)
	}
}

func (s *Server) replyError(sess *session.Session, id json.RawMessage, msg string, conflict []world.Voxel) {
	s.reply(sess, id, protocol.TypeError, protocol.ErrorPayload{Message: msg, Conflict: conflict})
}

func (s *Server) audit(event, color, name string) {
	if s.cfg.Audit == nil {
		return
	}
	if err := s.cfg.Audit.WritePresence(event, color, name); err != nil {
		s.cfg.Log.Printf("audit %s: %v", event, err)
	}
}
