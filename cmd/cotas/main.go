package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"cotas/internal/api"
	"cotas/internal/chart"
	"cotas/internal/config"
	"cotas/internal/events"
	"cotas/internal/logging"
	"cotas/internal/metrics"
	"cotas/internal/pipeline"
	"cotas/internal/stations"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	defer closer.Close()

	logger.Info("starting cotas run", "stations_file", cfg.StationsFile, "output_dir", cfg.OutputDir)

	codes, err := stations.LoadCodes(cfg.StationsFile)
	if err != nil {
		logger.Error("cannot read station list", "err", err)
		return 1
	}
	logger.Info("station list loaded", "stations", len(codes))

	refs := loadReferences(cfg.ReferencesFile, logger)

	client := api.NewANAClient(api.ClientParams{
		BaseURL:             cfg.ANA.BaseURL,
		UserAgent:           cfg.ANA.UserAgent,
		InventoryTimeout:    cfg.ANA.InventoryTimeout,
		MeasurementsTimeout: cfg.ANA.MeasurementsTimeout,
	})
	renderer := chart.NewRenderer(cfg.OutputDir, cfg.Chart.WidthIn, cfg.Chart.HeightIn)

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(client, renderer, refs, publisher, logger, pipeline.Options{
		Location:      cfg.Location(),
		PastDays:      cfg.ANA.PastDays,
		LookaheadDays: cfg.ANA.LookaheadDays,
	})
	summary := runner.Run(ctx, codes)

	logger.Info("run finished", summaryAttrs(summary)...)

	if cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "err", err)
		}
	}
	return 0
}

// loadReferences never fails the run: without a usable table every chart is
// drawn without reference lines.
func loadReferences(path string, logger *slog.Logger) stations.Table {
	refs, err := stations.LoadThresholds(path)
	switch {
	case errors.Is(err, stations.ErrReferencesNotFound):
		logger.Warn("reference table not found, charts will have no reference lines", "path", path)
	case err != nil:
		logger.Error("cannot read reference table, charts will have no reference lines", "err", err)
	default:
		logger.Info("reference table loaded", "stations", refs.Len())
	}

	for _, row := range refs.Skipped {
		logger.Warn("skipped reference row", "line", row.Line, "code", row.Code, "reason", row.Reason)
	}
	return refs
}

// newPublisher builds the optional status sinks. A broker that cannot be
// reached is logged and left out; charts do not depend on it.
func newPublisher(cfg *config.Config, logger *slog.Logger) (pipeline.Publisher, func()) {
	var sinks events.Multi
	var closers []func() error

	if cfg.Redis.Enabled() {
		p := events.NewRedisPublisher(cfg.Redis)
		sinks = append(sinks, p)
		closers = append(closers, p.Close)
		logger.Info("publishing station events to redis", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	}

	if cfg.MQTT.Enabled() {
		p, err := events.NewMQTTPublisher(cfg.MQTT)
		if err != nil {
			logger.Warn("mqtt disabled for this run", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			sinks = append(sinks, p)
			closers = append(closers, p.Close)
			logger.Info("publishing station events to mqtt", "broker", cfg.MQTT.Broker, "prefix", cfg.MQTT.TopicPrefix)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("failed to close event publisher", "err", err)
			}
		}
	}
	if len(sinks) == 0 {
		return nil, closeAll
	}
	return sinks, closeAll
}

func summaryAttrs(s pipeline.Summary) []any {
	attrs := []any{"stations", s.Total, "duration", s.Duration.Round(1e6).String()}
	for _, outcome := range []pipeline.Outcome{
		pipeline.Rendered,
		pipeline.NoData,
		pipeline.NoValidData,
		pipeline.FetchFailed,
		pipeline.RenderFailed,
	} {
		attrs = append(attrs, string(outcome), s.ByOutcome[outcome])
	}
	return attrs
}
