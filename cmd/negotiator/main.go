// Package main is the entry point for the negotiation assistant service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iisharvard/a2b-sub002/internal/backend"
	"github.com/iisharvard/a2b-sub002/internal/config"
	"github.com/iisharvard/a2b-sub002/internal/coordinator"
	"github.com/iisharvard/a2b-sub002/internal/guard"
	"github.com/iisharvard/a2b-sub002/internal/ipc"
	"github.com/iisharvard/a2b-sub002/internal/metrics"
	"github.com/iisharvard/a2b-sub002/internal/state"
	"github.com/iisharvard/a2b-sub002/internal/store"
	"github.com/iisharvard/a2b-sub002/internal/workflow"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fatal(err.Error())
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "negotiator",
		Short:         "Negotiation case assistant service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (JSON or YAML)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "negotiator %s (commit=%s, built=%s)\n", version, commit, date)
		},
	}
	root.AddCommand(serveCmd, diffCmd(), versionCmd)
	return root
}

func serve(configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	// Resolve config path: --config flag > NEG_CONFIG env > auto-discover next to exe.
	path := configPath
	if path == "" {
		path = os.Getenv("NEG_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		return errors.New("no config found. Place config.yaml or config.json next to the exe, use --config <path>, or set NEG_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m := metrics.New()
	client := backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey, cfg.RequestTimeout())

	// Wire case store, tracker and rate-limited backend.
	st := state.New()
	tracker := workflow.NewTracker()
	g := guard.NewGuard(db, guard.GuardConfig{RateLimitPerMinute: cfg.RateLimitPerMinute}, logger)
	limited := &guard.LimitedBackend{Next: client, Guard: g, UserID: cfg.UserID, CaseID: st.CaseID}

	coord := coordinator.New(st, tracker, limited, coordinator.Config{
		MaxPerUnit:       cfg.MaxScenariosPerComponent,
		RateLimitBackoff: cfg.RateLimitBackoff(),
		Actor:            cfg.UserID,
	})
	coord.Journal = store.NewJournal(db)
	coord.Metrics = m
	coord.Logger = logger
	coord.OnNotice(func(n coordinator.Notice) {
		logger.Info("notice", "success", n.Success, "kind", n.Kind, "unit", n.UnitID, "message", n.Message)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mon := backend.NewMonitor(client, cfg.HealthInterval(), logger)
	mon.OnReport = func(r backend.HealthReport) { m.SetBackendHealthy(r.Healthy) }
	mon.Start(ctx)

	handler := ipc.NewHandler(coord, mon, db, cfg.UserID, logger)
	handler.Guard = g
	srv := ipc.NewServer(handler, ipc.ServerOptions{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout(),
		Metrics:        m,
	})

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")

		mon.Stop()
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", "err", err)
		}
	}()

	logger.Info("negotiator listening", "url", listenURL(cfg.ListenAddr), "config", path)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// discoverConfig looks for a config file next to the executable, then in the cwd.
func discoverConfig() string {
	names := []string{"config.yaml", "config.yml", "config.json"}
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, ".")
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// listenURL turns a listen address such as ":9810" into a browsable URL.
func listenURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

// fatal prints an error and, on Windows, waits for a keypress so the user can
// read the message when the exe is launched by double-click.
func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	if runtime.GOOS == "windows" {
		fmt.Fprintln(os.Stderr, "\nPress Enter to exit...")
		bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	os.Exit(1)
}
