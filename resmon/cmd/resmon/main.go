// Command resmon profiles the resource footprint of web apps.
//
// Usage:
//
//	resmon -config resmon.yaml             # profile all configured targets
//	resmon -url http://localhost:3000/     # quick single-target profile
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/Lissy93/framework-benchmarks/resmon"
	"github.com/Lissy93/framework-benchmarks/resmon/internal/api"
	"github.com/Lissy93/framework-benchmarks/resmon/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to resmon.yaml config file")
	singleURL := flag.String("url", "", "profile a single URL with defaults")
	runs := flag.Int("runs", 0, "override number of runs per target")
	journal := flag.String("journal", "", "override sqlite stage journal path")
	listen := flag.String("listen", "", "override diagnostics listen address")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *runs, *journal, *listen); err != nil {
		logger.Error("resmon: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string, runs int, journal, listen string) error {
	cfg, err := buildConfig(configPath, singleURL)
	if err != nil {
		return err
	}
	if runs > 0 {
		cfg.Runs = runs
	}
	if journal != "" {
		cfg.Journal = journal
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reporters := []resmon.Reporter{resmon.NewSlogReporter(logger)}
	if cfg.Journal != "" {
		j, err := resmon.OpenJournal(cfg.Journal, logger)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		reporters = append(reporters, j)
	}
	reporter := resmon.NewMultiReporter(reporters...)
	defer reporter.Close()

	opts := []resmon.Option{resmon.WithReporter(reporter)}
	if cfg.Listen != "" {
		srv := api.NewServer(cfg.Listen, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("resmon: diagnostics server", "error", err)
			}
		}()
		opts = append(opts, resmon.WithRecorder(srv))
	}

	runner := resmon.New(cfg, logger, opts...)
	results, err := runner.RunAll(ctx)
	if err != nil {
		return err
	}

	for _, res := range results {
		data, err := metrics.MarshalAveraged(res)
		if err != nil {
			return fmt.Errorf("marshal result for %s: %w", res.TargetID, err)
		}
		os.Stdout.Write(data)
		os.Stdout.Write([]byte("\n"))
	}
	return nil
}

func buildConfig(configPath, singleURL string) (*resmon.Config, error) {
	if configPath != "" {
		return resmon.LoadConfigFile(configPath)
	}
	if singleURL != "" {
		cfg := &resmon.Config{
			Targets: []resmon.TargetConfig{{ID: "target", URL: singleURL}},
		}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	fmt.Fprintln(os.Stderr, "usage: resmon -config <file> | -url <url>")
	return nil, errors.New("no config file or url given")
}
