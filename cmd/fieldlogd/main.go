// Package main provides the FieldLog daemon serving the local UI.
// Clients communicate via REST/WebSocket on localhost.
package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kimhsiao/fieldlog/cmd/fieldlogd/handlers"
	"github.com/kimhsiao/fieldlog/internal/config"
	"github.com/kimhsiao/fieldlog/internal/db"
	"github.com/kimhsiao/fieldlog/internal/lifecycle"
	"github.com/kimhsiao/fieldlog/internal/logging"
	"github.com/kimhsiao/fieldlog/internal/network"
	syncpkg "github.com/kimhsiao/fieldlog/internal/sync"
	"github.com/kimhsiao/fieldlog/internal/sync/queue"
	"github.com/kimhsiao/fieldlog/internal/sync/remote"
	"github.com/kimhsiao/fieldlog/internal/sync/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	initLogging(cfg)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		logging.Error("Failed to open database", err)
		os.Exit(1)
	}
	defer database.Close()

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		logging.Error("Failed to initialize migrations", err)
		os.Exit(1)
	}
	if err := migrator.Up(); err != nil {
		logging.Error("Failed to apply migrations", err)
		os.Exit(1)
	}

	repo := db.NewRepository(database.DB)
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitor := network.NewProbeMonitor(cfg.ProbeURL, cfg.ProbeInterval)
	// The daemon host always has a link; the probe decides reachability.
	monitor.SetLink(true, network.TransportEthernet)
	monitor.Start(ctx)
	defer monitor.Stop()

	notifier := lifecycle.NewNotifier()

	backend := remote.NewClient(&remote.Config{
		BaseURL: cfg.BackendURL,
		APIKey:  cfg.BackendAPIKey,
	})
	executor := remote.NewBackendExecutor(backend, cfg.CallTimeout)

	store := queue.NewStore(database.DB)
	engine := syncpkg.NewEngine(store, executor, monitor, notifier)
	engine.Start()

	hub := NewWSHub()
	engine.SetEventHandler(hub)

	sched := scheduler.New(engine, cfg.DrainInterval)
	sched.Start(ctx)
	defer sched.Stop()

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	obsHandler := handlers.NewObservationHandler(repo, engine)
	syncHandler := handlers.NewSyncHandler(engine)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"ok","service":"fieldlogd"}`))
		})
		obsHandler.Routes(r)
		syncHandler.Routes(r)
	})
	router.Get("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:              "localhost:" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logging.Info("FieldLog daemon listening", map[string]interface{}{
		"port": cfg.ServerPort,
	})

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error("Server failed", err)
		os.Exit(1)
	}
}

// initLogging configures the global logger, rotating the log file when one
// is configured.
func initLogging(cfg *config.Config) {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}

	level := logging.LevelInfo
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = logging.LevelDebug
	case "WARN":
		level = logging.LevelWarn
	case "ERROR":
		level = logging.LevelError
	}

	logging.Init(out, level)
}
