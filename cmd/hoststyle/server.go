package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kalambet/hoststyle/internal/api"
	"github.com/kalambet/hoststyle/internal/config"
	"github.com/kalambet/hoststyle/internal/metrics"
	"github.com/kalambet/hoststyle/internal/profile"
	"github.com/kalambet/hoststyle/internal/storage"
	"github.com/kalambet/hoststyle/internal/tracker"
	"github.com/kalambet/hoststyle/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the profile API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show hoststyle system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

func runServer(withMCP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	hostID, err := config.EnsureHostID(&cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	}()

	m := metrics.New()
	primary := profile.NewCachedStore(profile.NewSQLiteStore(store), cfg.Cache.TTL)
	fallback := profile.NewFileStore(cfg.Storage.ProfileDir())
	manager := profile.NewManager(primary, fallback, logger.Named("profile"), m)
	t := tracker.New(manager, logger.Named("tracker"), m, nil)

	handler := api.NewHandler(api.Deps{
		Store:    store,
		Profiles: primary,
		Tracker:  t,
		Metrics:  m,
		Logger:   logger.Named("api"),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w := worker.New(store, t, cfg.Worker.PollInterval, logger.Named("worker"), m)
	go w.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Tracker: t, HostID: hostID})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("MCP stdio server error", zap.Error(err))
			}
		}()
		logger.Info("MCP server started (stdio transport)", zap.String("host_id", hostID))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("hoststyle listening", zap.String("addr", addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	host := cfg.Host.ID
	if host == "" {
		host = "(not set, generated on first use)"
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	if err := client.health(ctx); err != nil {
		printStatus("Server", "unavailable at %s (%v)", cfg.Remote.BaseURL, err)
	} else {
		printStatus("Server", "running at %s", cfg.Remote.BaseURL)
		if hosts, err := client.hosts(ctx); err == nil {
			printStatus("Hosts", "%d", len(hosts))
		}
		if cfg.Host.ID != "" {
			switch report, err := client.report(ctx, cfg.Host.ID); {
			case err == nil:
				printStatus("Style", "%s (%d%%) after %d meetings", report.DominantStyle, report.StyleStrength, report.MeetingCount)
			case errors.Is(err, errNoReport):
				printStatus("Style", "no meetings tracked yet")
			}
		}
	}

	printStatus("Host", "%s", host)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Profiles", "%s", cfg.Storage.ProfileDir())
	return nil
}
