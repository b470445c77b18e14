// Command raceframe-server runs the replay control plane and streaming
// endpoint over HTTP.
//
// Usage:
//
//	go run ./cmd/raceframe-server [flags]
//
// Flags:
//
//	-addr     Listen address (default: localhost:8089)
//	-cache    Path to the SQLite session cache (default: race-cache.db)
//	-config   Optional tuning overrides JSON file
//	-fixture  Path to a recorded telemetry fixture JSON (required until a
//	          live upstream adapter is wired in)
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joptimus/fox-replay-system/internal/api"
	"github.com/joptimus/fox-replay-system/internal/cache"
	"github.com/joptimus/fox-replay-system/internal/config"
	"github.com/joptimus/fox-replay-system/internal/pipeline"
	"github.com/joptimus/fox-replay-system/internal/replay"
	"github.com/joptimus/fox-replay-system/internal/telemetry"
)

func main() {
	addr := flag.String("addr", "localhost:8089", "Listen address")
	cachePath := flag.String("cache", "race-cache.db", "Path to the SQLite session cache")
	configPath := flag.String("config", "", "Optional tuning overrides JSON file")
	fixturePath := flag.String("fixture", "", "Path to a recorded telemetry fixture JSON")
	flag.Parse()

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	if *fixturePath == "" {
		log.Fatal("Error: -fixture flag is required")
	}
	adapter, err := telemetry.LoadFixture(*fixturePath)
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	store, err := cache.Open(*cachePath)
	if err != nil {
		log.Fatalf("Failed to open session cache: %v", err)
	}
	defer store.Close()

	manager := replay.NewManager(store, func(telemetry.Session) *pipeline.Config {
		return &pipeline.Config{
			Adapter:    adapter,
			DriverInfo: adapter,
			Tuning:     tuning,
		}
	}, tuning)

	server := api.NewServer(manager, adapter, adapter, tuning)
	httpServer := &http.Server{Addr: *addr, Handler: server.ServeMux()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("raceframe-server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
