package main

import (
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/urbanbuzz/explorer/internal/adapters/googlemaps"
	"github.com/urbanbuzz/explorer/internal/adapters/openai"
	"github.com/urbanbuzz/explorer/internal/adapters/streetview"
	"github.com/urbanbuzz/explorer/internal/adapters/valkey"
	"github.com/urbanbuzz/explorer/internal/core/ports"
	"github.com/urbanbuzz/explorer/internal/core/usecases"
	"github.com/urbanbuzz/explorer/internal/pkg/config"
	"github.com/urbanbuzz/explorer/internal/pkg/logging"
	"github.com/urbanbuzz/explorer/internal/workflows"
)

func main() {
	cfg, err := config.Load("urbanbuzz-analyzer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.OpenAI.Enabled() {
		log.Fatal("openai.api_key is required to analyze routes")
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("urbanbuzz-analyzer", logLevel, "json")
	logger := slog.Default()

	mapsClient, err := googlemaps.FromConfig(cfg.Maps)
	if err != nil {
		log.Fatalf("maps: %v", err)
	}

	var cache ports.CacheService
	if vc, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, geocode cache disabled", "error", err)
	} else {
		defer vc.Close()
		cache = vc
	}

	imagery := streetview.NewBuilder(cfg.Maps.ImageryBaseURL, cfg.Maps.APIKey, cfg.Imagery.Size)
	oc := openai.NewClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey)

	geocoding := usecases.NewGeocodeService(mapsClient, mapsClient, cache)
	fetcher := usecases.NewImageFetcher(imagery, nil, 0, usecases.ImageParams{
		Pitch: cfg.Imagery.Pitch,
		FOV:   cfg.Imagery.FOV,
	}, logger)
	analysis := usecases.NewAnalysisService(
		streetview.NewDownloader(cfg.OpenAI.VisionTimeout()),
		openai.NewVision(oc, cfg.OpenAI.VisionModel),
		imagery.Prefix(),
	)
	analyses := usecases.NewRouteAnalysisService(geocoding, geocoding,
		usecases.NewEnricher(geocoding, cfg.Imagery.EnrichConcurrency, logger), fetcher, analysis, nil)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger.With("component", "temporal")),
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.RouteAnalysisWorkflow)
	w.RegisterActivity(&workflows.RouteAnalysisActivities{Analyses: analyses})

	slog.Info("route analysis worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
