package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quant_go/internal/app"
	"quant_go/internal/artifact"
	"quant_go/internal/domain"
	"quant_go/internal/engine"
	"quant_go/internal/feed"
	"quant_go/internal/infra"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	saveParams := flag.String("save-params", "", "save the YAML model coefficients under this name and exit")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	if *saveParams != "" {
		if err := bootstrap.SaveParams(*saveParams); err != nil {
			slog.Error("❌ Saving parameter set failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := &infra.Metrics{}
	recorder := infra.NewLatencyRecorder(cfg.Telemetry.LatencyCapacity)
	memory := infra.NewMemoryRecorder(cfg.Telemetry.MemoryCapacity)

	estimator, err := engine.NewEstimator(bootstrap.Params)
	if err != nil {
		slog.Error("❌ Estimator setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	publisher := artifact.NewPublisher(cfg.Publish.Path, cfg.PublishInterval(), metrics, slog.Default())

	endpoints := make([]feed.Endpoint, 0, len(cfg.Feed.Endpoints))
	for _, ep := range cfg.Feed.Endpoints {
		endpoints = append(endpoints, feed.Endpoint{Name: ep.Name, URL: ep.URL, Format: ep.Format})
	}

	var client *feed.Client
	processor := engine.NewProcessor(
		estimator, recorder, publisher, metrics, slog.Default(),
		cfg.Estimate.OrderSize, cfg.Estimate.Volatility,
		func() domain.ConnectionState { return client.State() },
	)
	client = feed.NewClient(feed.Config{
		Symbol:            cfg.Feed.Symbol,
		Endpoints:         endpoints,
		HandshakeTimeout:  cfg.HandshakeTimeout(),
		ReadTimeout:       cfg.ReadTimeout(),
		PingInterval:      cfg.PingInterval(),
		BackoffBase:       cfg.BackoffBase(),
		BackoffMax:        cfg.BackoffMax(),
		BackoffJitter:     cfg.Feed.Backoff.Jitter,
		MaxPerEndpoint:    cfg.Feed.Backoff.MaxPerEndpoint,
		MaxProtocolErrors: cfg.Feed.MaxProtocolErrors,
	}, processor.Handle, metrics, slog.Default())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error { return memory.Run(gctx, cfg.MemorySampleInterval()) })

	slog.InfoContext(ctx, "✨ Feed pipeline operational. Press Ctrl+C to exit.",
		slog.String("symbol", cfg.Feed.Symbol),
		slog.String("artifact", cfg.Publish.Path))

	err = g.Wait()

	if flushErr := publisher.Flush(); flushErr != nil {
		slog.Warn("Final artifact flush failed", slog.Any("error", flushErr))
	}

	snap := metrics.Snapshot()
	slog.Info("👋 Shutting down",
		slog.Uint64("updates", snap.UpdatesProcessed),
		slog.Uint64("published", snap.Publishes),
		slog.Uint64("malformed", snap.DroppedMalformed),
		slog.Uint64("invalid", snap.DroppedInvalid),
		slog.Uint64("reconnects", snap.Reconnects))

	if err != nil && errors.Is(err, domain.ErrProtocolFailure) {
		os.Exit(1)
	}
}
