package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/tably-labs/tably/config"
	"github.com/tably-labs/tably/events"
	tablyotel "github.com/tably-labs/tably/otel"
	"github.com/tably-labs/tably/server"
	"github.com/tably-labs/tably/sse"
	"github.com/tably-labs/tably/ws"
)

// Set by main via SetVersion.
var version = "dev"

// SetVersion records the build version for telemetry and logs.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the restaurant platform server",
		RunE:  runServe,
	}

	cmd.Flags().String("config", "", "Path to tably.yaml")
	cmd.Flags().IntP("port", "p", 0, "Listen port (overrides config)")
	cmd.Flags().String("host", "", "Listen host (overrides config)")
	cmd.Flags().String("cors-origin", "", "Allowed CORS origin (overrides config)")
	cmd.Flags().String("sqlite-path", "", "Path to SQLite database (overrides config)")
	cmd.Flags().Duration("reconcile-interval", 0, "Status reconciler interval (overrides config)")
	cmd.Flags().String("otel-endpoint", "", "OTLP/HTTP trace endpoint (overrides config)")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (0 keeps streams open)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(cmd)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	shutdownTracing, err := tablyotel.SetupTracing(ctx, tablyotel.TracingConfig{
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		ServiceName: "tably",
		Version:     version,
	})
	if err != nil {
		return exitError(exitRuntime, "initializing tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracing(context.Background())
	}()

	hubMetrics, err := tablyotel.NewHubMetrics(otelapi.GetMeterProvider().Meter("tably/events"))
	if err != nil {
		return exitError(exitRuntime, "initializing hub metrics: %v", err)
	}

	// --- Stores ---
	store, err := server.NewSQLiteStore(server.SQLiteStoreConfig{DSN: cfg.Database.Path})
	if err != nil {
		return fmt.Errorf("opening sqlite store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	authStore, err := server.NewAuthSQLiteStore(store.DB())
	if err != nil {
		return fmt.Errorf("opening auth store: %w", err)
	}

	// --- Event hub and API server ---
	hub := events.NewHub(events.HubConfig{
		Logger:   logger,
		Observer: hubMetrics,
	})

	apiServer := server.NewServer(server.ServerConfig{
		Store:      store,
		AuthStore:  authStore,
		Hub:        hub,
		CORSOrigin: cfg.CORSOrigin,
		Logger:     logger,
	})

	// --- Background work ---
	reconciler, err := server.NewStatusReconciler(server.StatusReconcilerConfig{
		Store:    store,
		Hub:      hub,
		Interval: cfg.Reconciler.Interval,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating status reconciler: %w", err)
	}
	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("starting status reconciler: %w", err)
	}
	defer func() {
		_ = reconciler.Stop(context.Background())
	}()

	janitor, err := server.NewSessionJanitor(server.SessionJanitorConfig{
		Auth:   authStore,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating session janitor: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	// --- Connection adapters ---
	resolver := server.NewConnectionResolver(authStore, store)
	sseHandler := sse.NewHandler(sse.HandlerConfig{
		Hub:        hub,
		Resolver:   resolver,
		CookieName: server.AuthCookieName,
		Logger:     logger,
	})
	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Hub:        hub,
		Resolver:   resolver,
		CookieName: server.AuthCookieName,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	mux.Handle("GET /api/events/stream", sseHandler)
	mux.Handle("GET /api/events/ws", wsHandler)

	var handler http.Handler = mux
	handler = withCORS(handler, cfg.CORSOrigin)
	handler = maxBodyMiddleware(handler, 1<<20)
	if cfg.Telemetry.Endpoint != "" {
		handler = tablyotel.HTTPMiddleware(otelapi.GetTracerProvider().Tracer("tably/http"), handler)
	}

	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler,
		// WriteTimeout stays zero by default so long-lived event streams
		// are not cut off.
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tably listening",
			"addr", cfg.Addr(),
			"version", version,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// loadServeConfig discovers and loads the config file, then applies flag
// overrides on top.
func loadServeConfig(cmd *cobra.Command) (config.Config, error) {
	explicitPath, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	path, found, err := config.Discover(explicitPath)
	if err != nil {
		return config.Config{}, err
	}
	if found {
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	if origin, _ := cmd.Flags().GetString("cors-origin"); origin != "" {
		cfg.CORSOrigin = origin
	}
	if dbPath, _ := cmd.Flags().GetString("sqlite-path"); dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if interval, _ := cmd.Flags().GetDuration("reconcile-interval"); interval > 0 {
		cfg.Reconciler.Interval = interval
	}
	if endpoint, _ := cmd.Flags().GetString("otel-endpoint"); endpoint != "" {
		cfg.Telemetry.Endpoint = endpoint
	}
	return cfg, nil
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func maxBodyMiddleware(next http.Handler, maxBody int64) http.Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler, allowedOrigin string) http.Handler {
	origin := strings.TrimSpace(allowedOrigin)
	if origin == "" {
		origin = "*"
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
