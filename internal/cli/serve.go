package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ppiankov/policydeck/internal/history"
	"github.com/ppiankov/policydeck/internal/metrics"
	"github.com/ppiankov/policydeck/internal/policy"
	"github.com/ppiankov/policydeck/internal/remote"
	"github.com/ppiankov/policydeck/internal/telemetry"
	"github.com/ppiankov/policydeck/internal/web"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the policy dashboard as a long-running web service",
	Long: `Start policydeck as a service that refreshes the policy collection on
an interval and serves it over HTTP.

Endpoints:
  /                 Policy dashboard
  /metrics          Prometheus scrape endpoint
  /healthz          Liveness probe (returns 503 if the snapshot is stale)
  /api/v1/policies  JSON snapshot of the current collection
  /api/v1/history   Snapshot history (when --history-db is set)
  /api/v1/trend     Per-app badge history (when --history-db is set)`,
	Example: `  # Serve with defaults
  policydeck serve --url http://localhost:8000/policies

  # Custom config, JSON logs, snapshot history
  policydeck serve --config /etc/policydeck/config.yaml \
    --history-db /var/lib/policydeck/history.db --log-format json`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("config", "", "Path to config file")
	serveCmd.Flags().String("url", "", "Policy read endpoint (overrides config)")
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")
	serveCmd.Flags().String("history-db", "", "Path to SQLite history database")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	urlFlag, _ := cmd.Flags().GetString("url") //nolint:errcheck // flag registered above
	if urlFlag != "" {
		cfg.URL = urlFlag
	}
	listenFlag, _ := cmd.Flags().GetString("listen") //nolint:errcheck // flag registered above
	if listenFlag != "" {
		cfg.ListenAddr = listenFlag
	}
	historyDB, _ := cmd.Flags().GetString("history-db") //nolint:errcheck // flag registered above
	if historyDB != "" {
		cfg.HistoryDB = historyDB
	}

	// Open history store if configured
	var histStore *history.Store
	if cfg.HistoryDB != "" {
		var histErr error
		histStore, histErr = history.Open(cfg.HistoryDB)
		if histErr != nil {
			return fmt.Errorf("opening history database: %w", histErr)
		}
		defer histStore.Close() //nolint:errcheck // best-effort cleanup on shutdown
		slog.Info("history storage enabled", "path", cfg.HistoryDB)
	}

	// Initialize tracing
	otelEndpoint, _ := cmd.Flags().GetString("otel-endpoint") //nolint:errcheck // flag registered above
	tracer, tracerShutdown, tracerErr := telemetry.InitTracer(context.Background(), otelEndpoint, "policydeck", version)
	if tracerErr != nil {
		slog.Warn("initializing tracer", "err", tracerErr)
	} else {
		defer tracerShutdown(context.Background()) //nolint:errcheck // best-effort flush
	}

	source := &remote.Source{URL: cfg.URL}

	// Shared state: mutex-protected snapshot
	var mu sync.RWMutex
	var currentSnap policy.Snapshot

	getSnapshot := func() policy.Snapshot {
		mu.RLock()
		defer mu.RUnlock()
		return currentSnap
	}

	// Prometheus metrics
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/", web.UIHandler(getSnapshot, cfg.URL))
	mux.HandleFunc("/healthz", web.HealthzHandler(getSnapshot, 2*cfg.RefreshEvery))
	mux.HandleFunc("/api/v1/policies", web.PoliciesHandler(getSnapshot))
	if histStore != nil {
		mux.HandleFunc("/api/v1/history", web.HistoryHandler(histStore))
		mux.HandleFunc("/api/v1/trend", web.TrendHandler(histStore))
	}
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background fetch loop. A failed fetch publishes an empty collection
	// with the error recorded: the dashboard never shows stale rows.
	fetch := func() {
		start := time.Now()
		fetchCtx := ctx
		var end func(int, error)
		if tracer != nil {
			fetchCtx, end = telemetry.StartFetchSpan(ctx, tracer, cfg.URL)
		}
		snap, fetchErr := source.Fetch(fetchCtx)
		duration := time.Since(start)
		if fetchErr != nil {
			snap = policy.Snapshot{At: time.Now(), FetchErr: fetchErr.Error()}
			slog.Error("fetching policies", "err", fetchErr, "duration", duration.Round(time.Millisecond))
		} else {
			slog.Info("fetch complete", "policies", len(snap.Policies),
				"duration", duration.Round(time.Millisecond))
		}
		if end != nil {
			end(len(snap.Policies), fetchErr)
		}

		mu.Lock()
		currentSnap = snap
		mu.Unlock()

		collector.Update(snap, duration)

		if histStore != nil {
			if saveErr := histStore.Save(snap); saveErr != nil {
				slog.Error("saving history snapshot", "err", saveErr)
			}
		}
	}

	// Run initial fetch
	fetch()

	// Start periodic fetch loop
	go func() {
		ticker := time.NewTicker(cfg.RefreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("fetch panic recovered", "panic", r)
						}
					}()
					fetch()
				}()
			}
		}
	}()

	// Start HTTP server
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("policydeck serve listening", "version", version, "addr", cfg.ListenAddr, "source", cfg.URL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}
