package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/saturnino-fabrica-de-software/presenca/internal/api"
	"github.com/saturnino-fabrica-de-software/presenca/internal/camera"
	"github.com/saturnino-fabrica-de-software/presenca/internal/config"
	"github.com/saturnino-fabrica-de-software/presenca/internal/dahua"
	"github.com/saturnino-fabrica-de-software/presenca/internal/database"
	"github.com/saturnino-fabrica-de-software/presenca/internal/domain"
	"github.com/saturnino-fabrica-de-software/presenca/internal/face"
	"github.com/saturnino-fabrica-de-software/presenca/internal/liveness"
	"github.com/saturnino-fabrica-de-software/presenca/internal/monitor"
	"github.com/saturnino-fabrica-de-software/presenca/internal/repository"
	"github.com/saturnino-fabrica-de-software/presenca/internal/stream"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	logger.Info("starting attendance monitor",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	engineCfg := face.DefaultHTTPEngineConfig()
	engineCfg.BaseURL = cfg.FaceEngineURL
	engineCfg.Timeout = cfg.FaceEngineTimeout
	engineCfg.MaxFaces = cfg.MaxFacesPerImage
	engine := face.NewHTTPEngine(engineCfg)

	var matcher face.Matcher
	if cfg.IndexedMatcher {
		matcher = face.NewIndexedMatcher(cfg.FaceTolerance)
	} else {
		matcher = face.NewLinearMatcher(cfg.FaceTolerance)
	}

	livenessCfg := liveness.DefaultConfig()
	livenessCfg.Enabled = cfg.EnableLiveness
	livenessCfg.Threshold = cfg.LivenessThreshold
	scorer := liveness.NewScorer(livenessCfg)

	workStart, _ := config.ParseClock(cfg.WorkStart)
	halfDayCutoff, _ := config.ParseClock(cfg.HalfDayCutoff)
	monitorCfg := monitor.Config{
		PollInterval: cfg.PollInterval,
		Cooldown:     cfg.RecognitionCooldown,
		StartRetries: 2,
		Schedule: monitor.Schedule{
			WorkStart:     workStart,
			Grace:         cfg.GracePeriod,
			HalfDayCutoff: halfDayCutoff,
		},
	}

	sourceOpts := camera.Options{SnapshotTimeout: cfg.SnapshotTimeout}
	factory := func(cam domain.Camera) (*monitor.Monitor, error) {
		src, err := camera.NewSource(cam, sourceOpts)
		if err != nil {
			return nil, err
		}
		deps := monitor.Deps{
			Source:  src,
			Engine:  engine,
			Matcher: matcher,
			Scorer:  scorer,
			Store:   store,
		}
		if cam.Transport == domain.TransportHTTP {
			vendorCfg := dahua.Config{
				BaseURL:  cam.StreamURL,
				Username: cam.Username,
				Password: cam.Password,
				Timeout:  cfg.SnapshotTimeout,
			}
			deps.Vendor = dahua.NewClient(vendorCfg)
			if cam.Mode == domain.ModeEvent {
				deps.Events = dahua.NewEventClient(vendorCfg, logger)
			}
		}
		return monitor.New(cam, deps, monitorCfg, logger), nil
	}

	monitors := monitor.NewRegistry(factory, store, logger)
	streams := stream.NewRegistry(func(cam domain.Camera) (camera.Source, error) {
		return camera.NewSource(cam, sourceOpts)
	}, logger)

	startActiveCameras(ctx, logger, store, monitors)

	router := api.NewRouter(logger, &api.Dependencies{
		Cameras:  store,
		Monitors: monitors,
		Streams:  streams,
		DB:       pool,
	})
	router.Setup()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Port))
		if err := router.Listen(cfg.Port); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down...")
	if err := router.Shutdown(); err != nil {
		logger.Error("shutdown error", slog.Any("error", err))
	}

	<-shutdownCtx.Done()
	logger.Info("server stopped")

	return nil
}

// startActiveCameras brings monitoring up for every active camera at boot.
// Individual failures are logged and left for the operator; the service
// still starts.
func startActiveCameras(ctx context.Context, logger *slog.Logger, store *repository.Store, monitors *monitor.Registry) {
	cams, err := store.ListActiveCameras(ctx)
	if err != nil {
		logger.Error("list active cameras", slog.Any("error", err))
		return
	}

	for _, cam := range cams {
		if err := monitors.Start(ctx, cam); err != nil {
			logger.Warn("camera did not start",
				slog.String("camera", cam.Name),
				slog.Any("error", err))
			continue
		}
		logger.Info("monitoring camera",
			slog.String("camera", cam.Name),
			slog.String("mode", string(cam.Mode)))
	}
}
