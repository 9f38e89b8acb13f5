package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/urbanbuzz/explorer/internal/adapters/googlemaps"
	"github.com/urbanbuzz/explorer/internal/adapters/http"
	natsadapter "github.com/urbanbuzz/explorer/internal/adapters/nats"
	"github.com/urbanbuzz/explorer/internal/adapters/openai"
	"github.com/urbanbuzz/explorer/internal/adapters/postgres"
	"github.com/urbanbuzz/explorer/internal/adapters/streetview"
	"github.com/urbanbuzz/explorer/internal/adapters/valkey"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
	"github.com/urbanbuzz/explorer/internal/pkg/config"
	"github.com/urbanbuzz/explorer/internal/pkg/logging"
	"github.com/urbanbuzz/explorer/internal/pkg/metrics"
	"github.com/urbanbuzz/explorer/internal/pkg/telemetry"
	"github.com/urbanbuzz/explorer/internal/workflows"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load("urbanbuzz-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("urbanbuzz-api", logLevel, "json")
	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	mapsClient, err := googlemaps.FromConfig(cfg.Maps)
	if err != nil {
		log.Fatalf("maps: %v", err)
	}
	imagery := streetview.NewBuilder(cfg.Maps.ImageryBaseURL, cfg.Maps.APIKey, cfg.Imagery.Size)
	downloader := streetview.NewDownloader(cfg.OpenAI.VisionTimeout())

	// Optional backing services. Interfaces are only assigned on success so
	// that a failed connection stays a nil interface.
	deps := &http.Dependencies{
		Maps:           imagery,
		ExploreTimeout: time.Duration(cfg.Server.ExploreTimeout) * time.Second,
		Version:        version,
	}

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, geocode cache disabled", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, exploration events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
		deps.Broker = pub
	}

	var history ports.ExplorationRepository
	if db, err := postgres.New(ctx, cfg.Database.DSN()); err != nil {
		slog.Warn("database unavailable, exploration history disabled", "error", err)
	} else {
		defer db.Close()
		history = postgres.NewExplorationRepo(db)
		deps.DB = db
		go reportPoolStats(ctx, db)
	}

	// Model collaborators
	var (
		advisor ports.ImageryAdvisor
		vision  ports.VisionAnalyzer
		safety  ports.SafetyAnalyzer
	)
	if cfg.OpenAI.Enabled() {
		oc := openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)
		advisor = openai.NewAdvisor(oc, cfg.OpenAI.AdvisoryModel)
		vision = openai.NewVision(oc, cfg.OpenAI.VisionModel)
		safety = openai.NewSafety(oc, cfg.OpenAI.SafetyModel)
	} else {
		slog.Info("openai not configured, advisory, vision and safety analysis disabled")
	}

	var runner ports.RouteAnalysisRunner
	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		slog.Warn("temporal unavailable, route analyses disabled", "error", err)
	} else {
		defer tc.Close()
		runner = workflows.NewRunner(tc, cfg.Temporal.TaskQueue)
	}

	// Use cases
	geocoding := usecases.NewGeocodeService(mapsClient, mapsClient, cache)
	enricher := usecases.NewEnricher(geocoding, cfg.Imagery.EnrichConcurrency, logger)
	fetcher := usecases.NewImageFetcher(imagery, advisor, cfg.OpenAI.AdvisoryTimeout(), usecases.ImageParams{
		Pitch: cfg.Imagery.Pitch,
		FOV:   cfg.Imagery.FOV,
	}, logger)
	analysis := usecases.NewAnalysisService(downloader, vision, imagery.Prefix())

	deps.Geocoding = geocoding
	deps.Explorations = usecases.NewExplorationService(geocoding, geocoding, enricher, fetcher, events, history,
		usecases.ExplorationConfig{
			StopsPerLeg:   cfg.Imagery.StopsPerLeg,
			RetryAttempts: cfg.Maps.RetryAttempts,
		}, logger)
	deps.Stations = usecases.NewStationService(geocoding, mapsClient)
	deps.Places = usecases.NewPlaceSearchService(mapsClient, mapsClient)
	deps.Safety = usecases.NewSafetyService(mapsClient, safety, logger)
	deps.Analysis = analysis
	deps.RouteAnalyses = usecases.NewRouteAnalysisService(geocoding, geocoding, enricher, fetcher, analysis, runner)

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Urban Buzz Explorer",
	})
	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "version", version)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
