// Command gatewayctl runs the Rule Engine as a thin process: it loads
// configuration, compiles the configured rule source into an Engine,
// watches that source for changes, and serves /metrics. It deliberately
// carries no data-request transport of its own — that surface, and the
// Entry Facade/accessor/result-cache wiring a transport would exercise, is
// out of scope here and exercised instead by those packages' own tests —
// and doubles as a CI rule-linter via -validate.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"passgate/internal/config"
	"passgate/internal/engine"
	"passgate/internal/logging"
	"passgate/internal/metrics"
	"passgate/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "PASSGATE", "environment variable prefix")
		validate   = flag.Bool("validate", false, "compile the configured rule source and exit non-zero on any CompileError")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	eng, err := engine.New()
	if err != nil {
		log.Fatalf("failed to construct engine: %v", err)
	}
	if err := eng.Load(cfg.Collections); err != nil {
		log.Fatalf("failed to compile rule source: %v", err)
	}

	if *validate {
		for _, skip := range cfg.SkippedDefinitions {
			fmt.Fprintf(os.Stderr, "skipped %s %q (%s): %s\n", skip.Kind, skip.Name, strings.Join(skip.Sources, ","), skip.Reason)
		}
		if len(cfg.SkippedDefinitions) > 0 {
			os.Exit(1)
		}
		fmt.Printf("ok: %d collection(s) compiled from %s\n", len(cfg.Collections), strings.Join(cfg.RuleSources, ", "))
		return
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}
	for _, skip := range cfg.SkippedDefinitions {
		logger.Warn("skipped uncompilable rule document",
			slog.String("kind", skip.Kind),
			slog.String("name", skip.Name),
			slog.String("reason", skip.Reason),
			slog.Any("sources", skip.Sources),
		)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	var rulesWatcher *config.RulesWatcher
	if cfg.Server.Rules.RulesFile != "" || cfg.Server.Rules.RulesFolder != "" {
		watcher, err := loader.WatchRules(ctx, cfg, func(bundle config.RuleBundle) {
			if err := eng.Load(bundle.Collections); err != nil {
				logger.Error("rule reload failed, keeping previous table", slog.Any("error", err))
				return
			}
			logger.Info("rule table reloaded", slog.Int("collections", len(bundle.Collections)))
		}, func(err error) {
			if err != nil {
				logger.Error("rules watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("rules watcher setup failed", slog.Any("error", err))
		} else {
			rulesWatcher = watcher
			defer rulesWatcher.Stop()
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
