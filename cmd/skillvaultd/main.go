// skillvaultd is the retention daemon. It owns the snapshot database, runs
// the compaction and prune cadences, and optionally serves Prometheus
// metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skillvault/skillvault/internal/loader"
	"github.com/skillvault/skillvault/internal/logging"
	"github.com/skillvault/skillvault/internal/scheduler"
	"github.com/skillvault/skillvault/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	dbPath := flag.String("db", "", "database path (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	metricsListen := flag.String("metrics", "", "metrics listen address (overrides config)")
	compactOnStart := flag.Bool("compact-on-start", false, "run all compaction stages once at startup")
	flag.Parse()

	// .env is optional; real env always wins.
	_ = godotenv.Load()

	// Load config
	cfg, err := loader.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = loader.DefaultConfig()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI overrides
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *metricsListen != "" {
		cfg.Metrics.Listen = *metricsListen
	}

	if err := loader.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.JSON)
	log := logging.Component("main")
	log.Info("skillvaultd starting", "version", Version, "db", cfg.Database.Path)

	// =========================================================================
	// Storage
	// =========================================================================

	svcCfg := storage.DefaultConfig()
	svcCfg.Store.Path = cfg.Database.Path
	svcCfg.Store.QueryTimeout = cfg.Database.QueryTimeout
	svcCfg.Store.MaxOpenConns = cfg.Database.MaxOpenConns
	svcCfg.Store.MaxIdleConns = cfg.Database.MaxIdleConns
	svcCfg.Retention = cfg.Retention.Policy()
	svcCfg.PercentileAccuracy = cfg.Compaction.PercentileAccuracy

	svc, err := storage.Open(svcCfg)
	if err != nil {
		log.Error("open storage", "error", err)
		os.Exit(1)
	}

	if *compactOnStart {
		compacted, deleted := svc.CompactAll()
		log.Info("startup compaction done", "compacted", compacted, "deleted", deleted)
	}

	// =========================================================================
	// Maintenance cadences
	// =========================================================================

	sched := scheduler.New(scheduler.DefaultConfig())

	sched.Add("compact-raw-to-hourly", cfg.Compaction.HourlyInterval, func(context.Context) {
		svc.CompactRawToHourly()
	})
	sched.Add("compact-hourly-to-daily", cfg.Compaction.DailyInterval, func(context.Context) {
		svc.CompactHourlyToDaily()
	})
	sched.Add("compact-daily-to-weekly", cfg.Compaction.WeeklyInterval, func(context.Context) {
		svc.CompactDailyToWeekly()
		svc.PruneWeekly()
	})
	sched.Add("prune-levelups", cfg.Prune.LevelUpInterval, func(context.Context) {
		svc.PruneLevelUps(time.Now().Add(-cfg.Prune.LevelUpMaxAge))
	})

	sched.Start()

	// =========================================================================
	// Metrics endpoint
	// =========================================================================

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.Health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			fmt.Fprintln(w, "ok")
		})

		metricsSrv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			log.Info("metrics listening", "addr", cfg.Metrics.Listen)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server", "error", err)
			}
		}()
	}

	// =========================================================================
	// Signal Handling and Graceful Shutdown
	// =========================================================================

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	// Stop scheduling first, then the outer surfaces, then the database.
	sched.Stop()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(ctx); err != nil {
			log.Warn("metrics shutdown", "error", err)
		}
		cancel()
	}

	if err := svc.Close(); err != nil {
		log.Warn("close storage", "error", err)
	}

	log.Info("skillvaultd stopped")
}
