package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evalrelay/evalrelay/internal/config"
	"github.com/evalrelay/evalrelay/internal/follow"
	"github.com/evalrelay/evalrelay/pkg/types"
	"github.com/evalrelay/evalrelay/reporter"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars used otherwise)")
	inputPath := flag.String("input", "results.jsonl", "JSONL file of telemetry items")
	runName := flag.String("run", "", "experiment name (defaults to the input filename)")
	followMode := flag.Bool("follow", false, "tail the input file and ship appended items until interrupted")
	metaFlags := multiFlag{}
	flag.Var(&metaFlags, "meta", "run metadata as key=value (repeatable)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	name := *runName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(*inputPath), filepath.Ext(*inputPath))
	}

	slog.Info("evalrelay starting",
		"collector", cfg.Collector.URL,
		"project", cfg.Collector.Project,
		"input", *inputPath,
		"run", name,
		"follow", *followMode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var registerer prometheus.Registerer
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		registerer = registry
		go serveMetrics(cfg.Metrics.Addr, registry)
	}

	rep, err := reporter.New(reporter.Config{
		CollectorURL:   cfg.Collector.URL,
		Project:        cfg.Collector.Project,
		APIKey:         cfg.Collector.APIKey(),
		APIVersion:     cfg.Collector.Version,
		BatchSize:      cfg.Reporting.BatchSize,
		BatchWindow:    cfg.Reporting.BatchWindow,
		MaxAttempts:    cfg.Reporting.MaxAttempts,
		InitialBackoff: cfg.Reporting.InitialBackoff,
		FlushTimeout:   cfg.Reporting.FlushTimeout,
		Registerer:     registerer,
	})
	if err != nil {
		slog.Error("failed to create reporter", "err", err)
		os.Exit(1)
	}

	handle := rep.StartRun(ctx, name, metaFlags.values)
	slog.Info("run started", "handle", handle, "local", handle.IsLocal())

	status := types.RunStatusSuccess
	report := func(item types.TelemetryItem) { rep.ReportItem(handle, item) }

	if *followMode {
		if err := follow.New(*inputPath).Run(ctx, report); err != nil {
			slog.Error("follower stopped", "err", err)
			status = types.RunStatusFailed
		} else if ctx.Err() != nil {
			// Interrupted while following; the run did not finish on its own.
			status = types.RunStatusCancelled
		}
	} else {
		if err := follow.ReadFile(*inputPath, report); err != nil {
			slog.Error("failed to read input", "err", err)
			status = types.RunStatusFailed
		}
	}

	// Use a fresh context: the signal that stopped a follow run must not
	// abort the final drain.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
	defer shutdownCancel()

	if err := rep.CompleteRun(shutdownCtx, handle, status); err != nil {
		slog.Warn("run not marked complete", "handle", handle, "err", err)
	}
	if err := rep.Close(shutdownCtx); err != nil {
		slog.Warn("close finished with pending items", "err", err)
	}
	slog.Info("evalrelay done", "handle", handle, "status", status)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics endpoint stopped", "err", err)
	}
}

// multiFlag collects repeated key=value flags into a map.
type multiFlag struct {
	values map[string]string
}

func (m *multiFlag) String() string { return "" }

func (m *multiFlag) Set(s string) error {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	key, value, _ := strings.Cut(s, "=")
	m.values[key] = value
	return nil
}
