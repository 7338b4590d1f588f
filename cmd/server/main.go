package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"turg.world/internal/auth"
	persistlog "turg.world/internal/persistence/log"
	"turg.world/internal/persistence/voxeldb"
	"turg.world/internal/session"
	"turg.world/internal/sim/arbiter"
	"turg.world/internal/sim/leaderboard"
	"turg.world/internal/sim/tuning"
	"turg.world/internal/sim/world"
	"turg.world/internal/transport/httpapi"
	"turg.world/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		usersURL   = flag.String("users_url", "", "user directory JSON url (uid -> {color,name})")
		usersFile  = flag.String("users_file", "", "user directory JSON file (used when -users_url is empty)")
		audience   = flag.String("jwt_audience", "turg", "expected jwt audience")
		disableLog = flag.Bool("disable_eventlog", false, "disable the compressed event audit log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	secret := os.Getenv("TURG_JWT_SECRET")
	if secret == "" {
		logger.Fatalf("TURG_JWT_SECRET is required")
	}

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", *tuningPath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	db, err := voxeldb.Open(filepath.Join(*dataDir, "turg.db"))
	if err != nil {
		logger.Fatalf("open voxel db: %v", err)
	}
	defer db.Close()

	seedFlags(db, tune, logger)

	src, err := directorySource(*usersURL, *usersFile)
	if err != nil {
		logger.Fatalf("user directory: %v", err)
	}
	dir := auth.NewCachedDirectory(src)
	authn := auth.NewJWTAuthenticator([]byte(secret), *audience)

	registry := session.NewRegistry()
	router := session.NewRouter(registry, logger)
	limiter := session.NewRateLimiter(tune.RequestsPerMinute)
	arb := arbiter.New(db)

	bounds := world.Box{
		X: world.Range{Min: 0, Max: tune.MaxX},
		Y: world.Range{Min: 0, Max: tune.MaxY},
	}
	leaders := leaderboard.New(db, dir, bounds,
		time.Duration(tune.LeaderboardTTLSeconds)*time.Second)

	var audit *persistlog.EventLogger
	if !*disableLog {
		audit = persistlog.NewEventLogger(*dataDir)
		defer audit.Close()
	}

	wsServer := ws.NewServer(ws.Config{
		Tuning:   tune,
		Store:    db,
		Arbiter:  arb,
		Auth:     authn,
		Dir:      dir,
		Registry: registry,
		Router:   router,
		Limiter:  limiter,
		Audit:    audit,
		Log:      logger,
	})
	api := httpapi.New(tune, db, leaders, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws/", wsServer.Handler())
	api.Register(mux)
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsServer.RunPingSweep(ctx)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Printf("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	for _, s := range registry.AllSessions() {
		s.Close()
	}
}

// seedFlags inserts operator-defined flags when their coordinate is
// still free; an occupied coordinate means the flag already exists.
func seedFlags(db *voxeldb.DB, tune tuning.Tuning, logger *log.Logger) {
	ctx := context.Background()
	for _, f := range tune.Flags {
		v := world.Voxel{X: f.X, Y: f.Y, Z: f.Z, Name: f.Name}
		err := db.InsertUnique(ctx, v)
		switch err {
		case nil:
			logger.Printf("seeded flag %q at (%d,%d,%d)", f.Name, f.X, f.Y, f.Z)
		case world.ErrDuplicate:
			// already present
		default:
			logger.Fatalf("seed flag %q: %v", f.Name, err)
		}
	}
}

func directorySource(url, file string) (auth.Source, error) {
	if url != "" {
		return &auth.HTTPSource{URL: url}, nil
	}
	users := auth.StaticSource{}
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, err
		}
	}
	return users, nil
}
