package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/posereps/internal/capture"
	"github.com/ayusman/posereps/internal/config"
	"github.com/ayusman/posereps/internal/metrics"
	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/plugin"
	"github.com/ayusman/posereps/internal/pose"
	"github.com/ayusman/posereps/internal/reps"
	"github.com/ayusman/posereps/internal/server"
	"github.com/ayusman/posereps/internal/session"
	"github.com/ayusman/posereps/internal/store"
	"github.com/ayusman/posereps/internal/tray"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

GET / serves the rep counter page. The /api/session endpoints run the same
counter server-side against the configured camera.

Ctrl+C (SIGINT) or SIGTERM stops the session and shuts the server down.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	met := metrics.New()

	camera := capture.NewCamera(capture.Config{
		DeviceID: cfg.Camera.DeviceID,
		Size:     cfg.Camera.Size,
		FPS:      cfg.Camera.FPS,
		Mirror:   cfg.Camera.Mirror,
	})

	mgr, err := session.NewManager(session.Config{
		Camera:    camera,
		Loader:    modelLoader(cfg.Model),
		Settings:  st.Settings(),
		Metrics:   met,
		Logger:    logger,
		Threshold: float64(cfg.Session.ThresholdPct) / 100,
	})
	if err != nil {
		return err
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn("Plugin discovery failed", zap.Error(err))
	}
	hooks := plugin.NewRepHooks(plugins, plugin.NewExecutor(cfg.Plugins.Timeout), met, logger)
	mgr.OnRep(hooks.Handle)

	// The page starts from the persisted threshold when there is one.
	page := cfg.Page
	page.ThresholdPct = reps.Percent(mgr.Threshold())

	srv, err := server.New(server.Config{
		Page:        page,
		StaticDir:   cfg.Server.StaticDir,
		Sessions:    mgr,
		Metrics:     met,
		Logger:      logger,
		ReadTimeout: cfg.Server.ReadTimeout,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(cfg.Server.Addr()); err != nil {
			serveErr <- err
			stop()
		}
	}()

	logger.Info("posereps ready",
		zap.String("url", pageURL(cfg.Server)),
		zap.String("version", versionInfo.Version),
		zap.Int("plugins", len(plugins.List())))

	if cfg.Tray.Enabled {
		runTray(ctx, stop, mgr, pageURL(cfg.Server), logger)
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown failed", zap.Error(err))
	}
	if err := mgr.Close(); err != nil {
		logger.Warn("Session shutdown failed", zap.Error(err))
	}
	hooks.Wait()

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
		return nil
	}
}

// modelLoader opens the configured pose model on every session start.
func modelLoader(cfg config.ModelConfig) pose.Loader {
	return func() (pose.Model, error) {
		svc, err := pose.NewServiceModel(pose.ServiceConfig{
			Command:     cfg.Command,
			ModelDir:    cfg.Dir,
			IdleTimeout: cfg.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Classifier != config.ClassifierTemplates {
			return svc, nil
		}

		templates, err := pose.LoadTemplateClassifier(cfg.Templates)
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("load templates: %w", err)
		}
		return pose.Compose(svc.Name(), svc, templates, svc), nil
	}
}

// runTray shows the tray menu and blocks until ctx is done or Quit is clicked.
func runTray(ctx context.Context, quit context.CancelFunc, mgr *session.Manager, url string, logger *zap.Logger) {
	t := tray.New()
	t.OnStart(func() {
		if _, err := mgr.Start(ctx); err != nil {
			logger.Warn("Session start failed", zap.Error(err))
		}
	})
	t.OnStop(func() {
		if _, err := mgr.Stop(); err != nil && !errors.Is(err, session.ErrNotRunning) {
			logger.Warn("Session stop failed", zap.Error(err))
		}
	})
	t.OnReset(func() { mgr.Reset() })
	t.OnOpen(func() {
		if err := tray.OpenBrowser(url); err != nil {
			logger.Warn("Failed to open browser", zap.Error(err))
		}
	})
	t.OnQuit(quit)

	updates := mgr.Subscribe()
	defer mgr.Unsubscribe(updates)
	t.Update(mgr.Snapshot())
	go t.Follow(updates)

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

// pageURL is the address a local browser should open.
func pageURL(cfg config.ServerConfig) string {
	host := cfg.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Port)) + "/"
}
