package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsroom/app/api"
	"newsroom/app/cfg"
	"newsroom/app/delivery"
	"newsroom/app/feed"
	"newsroom/app/fetch"
	"newsroom/app/ingest"
	"newsroom/app/metrics"
	"newsroom/app/published"
	"newsroom/app/source"
	"newsroom/app/storage"
	"newsroom/app/summarizer"
	"newsroom/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Newsroom server", "version", appCfg.Version)

	store, cleanup, err := buildStorage(appCfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "backend", appCfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	registry := source.NewRegistry(store)
	items := feed.NewStore(store, appCfg.RetentionDays)
	records := published.NewStore(store)

	ruleConfig, err := feed.LoadRuleConfig(appCfg.QualityRulesFile)
	if err != nil {
		slog.Error("Failed to load quality rules", "file", appCfg.QualityRulesFile, "error", err)
		os.Exit(1)
	}
	filter := feed.NewFilter(ruleConfig)

	fetcher := fetch.NewRSSClient(time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.UserAgent)
	summaries := summarizer.NewClient(appCfg.SummarizerEndpoint, appCfg.SummarizerModel, appCfg.SummarizerAPIKey)
	dispatcher := delivery.NewClient(appCfg.DeliveryEndpoint, appCfg.DeliveryAPIKey)

	engine := ingest.NewEngine(registry, items, records, fetcher, summaries, dispatcher,
		filter, time.Duration(appCfg.FetchWindowHours)*time.Hour, appCfg.WorkerCount)

	if sources, err := registry.List(context.Background()); err == nil {
		enabled := 0
		for _, src := range sources {
			if src.Enabled {
				enabled++
			}
		}
		slog.Info("Source registry loaded", "total", len(sources), "enabled", enabled)
	} else {
		slog.Warn("Failed to read source registry at startup", "error", err)
	}

	metrics.Init("newsroom", appCfg.Version)

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval", appCfg.SchedulerInterval)
	scheduler := tasks.NewScheduler(registry, engine)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(registry, items, records, engine, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// buildStorage selects the configured backend. The remote backend is always
// wrapped in a hybrid with the local filesystem underneath, so reads survive
// a remote outage and pre-existing local data stays visible.
func buildStorage(appCfg *cfg.Cfg) (storage.Storage, func(), error) {
	local := storage.NewLocal(appCfg.DataDir)

	switch appCfg.StorageBackend {
	case "remote":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		remote, err := storage.NewRemote(ctx, appCfg.MongoURI, appCfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}

		slog.Info("Using hybrid storage", "database", appCfg.MongoDatabase)
		cleanup := func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := remote.Close(closeCtx); err != nil {
				slog.Warn("Failed to close remote storage", "error", err)
			}
		}
		return storage.NewHybrid(remote, local), cleanup, nil

	default:
		slog.Info("Using local storage", "dir", appCfg.DataDir)
		return local, func() {}, nil
	}
}
