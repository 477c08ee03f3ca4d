package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/agentmail/internal/archive"
	"github.com/Dicklesworthstone/agentmail/internal/config"
	"github.com/Dicklesworthstone/agentmail/internal/mcp"
	"github.com/Dicklesworthstone/agentmail/internal/resources"
	"github.com/Dicklesworthstone/agentmail/internal/store"
	"github.com/Dicklesworthstone/agentmail/internal/tools"
	"github.com/Dicklesworthstone/agentmail/internal/workers"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agentmail MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(newLogHandler(os.Stderr, parseLogLevel(cfg.Log.Level)))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dbPath := filepath.Join(cfg.Storage.Root, "index.db")
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return fmt.Errorf("creating storage root: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening index store: %w", err)
	}
	defer s.Close()

	registry := buildRegistry(s, cfg, logger)

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	runBackgroundWorkers(ctx, s, cfg, registry, logger)

	server := mcp.NewServer(registry, mcp.ServerInfo{Name: "agentmail", Version: version}, logger)

	logger.Info("starting agentmail", "version", version, "transport", cfg.Transport.Mode, "storage_root", cfg.Storage.Root)

	switch cfg.Transport.Mode {
	case "http":
		return runHTTP(ctx, server, cfg, logger)
	default:
		return server.Run(ctx)
	}
}

func runHTTP(ctx context.Context, server *mcp.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := mcp.NewHTTPServer(server, cfg.Transport.CORSOrigins, logger)
	mux := http.NewServeMux()
	mux.Handle(cfg.Transport.Path, httpServer.Handler())

	srv := &http.Server{
		Addr:              cfg.Transport.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http transport listening", "addr", cfg.Transport.Addr, "path", cfg.Transport.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics listener starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics listener stopped", "error", err)
	}
}

// buildRegistry constructs the tool/resource registry and wires every verb
// and resource implemented under internal/tools and internal/resources.
func buildRegistry(s *store.Store, cfg *config.Config, logger *slog.Logger) *mcp.Registry {
	registry := mcp.NewRegistry()
	deps := tools.NewDeps(s, cfg, logger)
	resDeps := &resources.Deps{Store: s}

	health := &tools.HealthCheck{Deps: deps}
	tooling := &resources.Tooling{Registry: registry}

	for _, t := range []mcp.Tool{
		&tools.EnsureProject{Deps: deps},
		&tools.RegisterAgent{Deps: deps},
		&tools.Whois{Deps: deps},
		&tools.SendMessage{Deps: deps},
		&tools.ReplyMessage{Deps: deps},
		&tools.MarkMessageRead{Deps: deps},
		&tools.AcknowledgeMessage{Deps: deps},
		&tools.FetchInbox{Deps: deps},
		&tools.ClaimPaths{Deps: deps},
		&tools.ReleaseClaims{Deps: deps},
		&tools.RenewClaims{Deps: deps},
		&tools.ForceReleaseFileReservation{Deps: deps},
		&tools.SetContactPolicy{Deps: deps},
		&tools.RequestContact{Deps: deps},
		&tools.RespondContact{Deps: deps},
		&tools.ListContacts{Deps: deps},
		&tools.SearchMessages{Deps: deps},
		&tools.SummarizeThread{Deps: deps},
		&tools.SummarizeThreads{Deps: deps},
		&tools.InstallPrecommitGuard{Deps: deps},
		&tools.UninstallPrecommitGuard{Deps: deps},
		&tools.RecordBuild{Deps: deps},
		health,
	} {
		registry.Register(t)
	}

	for _, r := range []mcp.Resource{
		&resources.Projects{Deps: resDeps},
		&resources.Project{Deps: resDeps},
		&resources.Agents{Deps: resDeps},
		&resources.Inbox{Deps: resDeps},
		&resources.Outbox{Deps: resDeps},
		&resources.Message{Deps: resDeps},
		&resources.Thread{Deps: resDeps},
		&resources.Claims{Deps: resDeps},
		&resources.Views{Deps: resDeps},
		tooling,
	} {
		registry.RegisterResource(r)
	}

	health.Registry = registry
	return registry
}

// runBackgroundWorkers starts the ticker-driven Scheduler jobs plus the
// event-driven per-project DriftWatch goroutines. It returns immediately;
// everything it starts stops when ctx is cancelled.
func runBackgroundWorkers(ctx context.Context, s *store.Store, cfg *config.Config, registry *mcp.Registry, logger *slog.Logger) {
	scheduler := workers.NewScheduler(logger)

	if cfg.Ack.Enabled {
		scheduler.AddJob(&workers.AckScanner{Store: s, Cfg: &cfg.Ack, Logger: logger},
			time.Duration(cfg.Ack.ScanIntervalSeconds)*time.Second)
	}
	scheduler.AddJob(&workers.ReservationExpiry{Store: s, Logger: logger},
		time.Duration(cfg.Claims.ExpiryScanIntervalSeconds)*time.Second)
	scheduler.AddJob(&workers.MetricsSnapshot{Registry: registry, Logger: logger}, 10*time.Second)

	go func() {
		if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("scheduler stopped", "error", err)
		}
	}()

	go watchProjectDrift(ctx, s, cfg, logger)
}

// watchProjectDrift polls for newly created projects and starts a DriftWatch
// goroutine for each one exactly once; projects are created dynamically
// through ensure_project, so there's no fixed set to wire up at startup.
func watchProjectDrift(ctx context.Context, s *store.Store, cfg *config.Config, logger *slog.Logger) {
	drift := &workers.DriftWatch{Store: s, Logger: logger}
	var mu sync.Mutex
	watching := make(map[int64]bool)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	startWatchers := func() {
		projects, err := s.ListProjects(ctx)
		if err != nil {
			logger.Warn("drift watch: list projects", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, p := range projects {
			if watching[p.ID] {
				continue
			}
			watching[p.ID] = true
			claimsDir := archive.New(cfg.Storage.Root, p.Slug).ClaimsDir()
			go func(p store.Project) {
				if err := drift.Watch(ctx, p.ID, claimsDir); err != nil {
					logger.Warn("drift watch stopped", "project", p.Slug, "error", err)
				}
			}(p)
		}
	}

	startWatchers()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			startWatchers()
		}
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
