package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/stockcast/stockcast-backend/internal/db"
	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/lifecycle"
	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/repos"
	"github.com/stockcast/stockcast-backend/internal/services"
)

type Repos struct {
	Snapshots repos.SnapshotRepo
	Cache     repos.PredictionCache
	Versions  repos.ModelVersionRepo
}

type Services struct {
	Forecast services.ForecastService
	Retrain  services.RetrainService
}

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Services Services
	Manager  *lifecycle.Manager

	active *model.ActiveModel
	cancel context.CancelFunc
	done   chan struct{}
}

// ActiveVersion reports the version token of the model currently serving
// forecasts, or "none" before the first model lands.
func (a *App) ActiveVersion() string {
	version := a.active.Version()
	if version == "" {
		return "none"
	}
	return version
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg, err := LoadConfig()
	if err != nil {
		log.Sync()
		return nil, err
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	log.Info("Setting up Repos...")
	reposet := Repos{
		Snapshots: repos.NewSnapshotRepo(theDB, log),
		Versions:  repos.NewModelVersionRepo(theDB, log),
	}
	reposet.Cache, err = wirePredictionCache(cfg.Cache, theDB, log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	log.Info("Prediction cache wired", "provider", string(cfg.Cache.Provider))

	policy := lifecycle.DefaultPolicy()
	if cfg.PolicyPath != "" {
		policy, err = lifecycle.LoadPolicy(cfg.PolicyPath)
		if err != nil {
			log.Warn("Failed to load acceptance policy, using default", "path", cfg.PolicyPath, "error", err)
		}
	}

	store := model.NewArtifactStore(cfg.ModelDir, log)
	active := model.NewActiveModel(nil)
	manager := lifecycle.NewManager(
		services.NewSnapshotLister(reposet.Snapshots),
		store,
		active,
		services.NewVersionRecorder(reposet.Versions),
		reposet.Cache,
		policy,
		log,
	)

	if err := loadOrRecoverModel(store, active, manager, cfg, log); err != nil {
		log.Sync()
		return nil, err
	}

	snapshots := services.NewSnapshotSource(reposet.Snapshots)
	builder := forecast.NewWindowBuilder(snapshots, reposet.Cache, log)
	engine := forecast.NewEngine(snapshots, builder, active, log)
	engine.SetMaxSteps(cfg.MaxForecastDays)

	log.Info("Setting up Services...")
	serviceset := Services{
		Forecast: services.NewForecastService(engine, reposet.Snapshots, reposet.Cache, log),
		Retrain:  services.NewRetrainService(manager, reposet.Versions, log),
	}

	return &App{
		Log:      log,
		DB:       theDB,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Manager:  manager,
		active:   active,
	}, nil
}

// loadOrRecoverModel fills the active pointer from disk. A missing or
// corrupt production artifact falls back to the newest stored version,
// then to training a first model from the feature store. Only an empty
// feature store leaves the app without a model, which is not fatal:
// forecasts fail until the first retrain succeeds.
func loadOrRecoverModel(store *model.ArtifactStore, active *model.ActiveModel, manager *lifecycle.Manager, cfg Config, log *logger.Logger) error {
	prod, scaler, version, err := store.LoadProduction()
	if err == nil {
		active.Swap(&model.Snapshot{Model: prod, Scaler: scaler, Version: version})
		log.Info("Loaded production model", "version", version)
		return nil
	}

	var loadErr *model.ModelLoadError
	if !errors.As(err, &loadErr) {
		return fmt.Errorf("load production model: %w", err)
	}
	log.Warn("Production model unavailable, attempting recovery", "error", err)

	if restored, rerr := manager.RestoreLatestBackup(); rerr == nil {
		log.Info("Restored production model from backup", "version", restored)
		return nil
	} else {
		log.Warn("No usable backup version", "error", rerr)
	}

	trainCfg := lifecycle.RetrainConfig{Epochs: cfg.RetrainEpochs, BatchSize: cfg.RetrainBatch, LearningRate: cfg.RetrainLR}
	if trained, terr := manager.Bootstrap(context.Background(), trainCfg); terr == nil {
		log.Info("Trained initial production model", "version", trained)
		return nil
	} else {
		log.Warn("Could not train an initial model, starting without one", "error", terr)
	}
	return nil
}

// Start launches the background retrain loop when an interval is
// configured. Safe to call once; later calls are no-ops.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})

	go a.retrainLoop(ctx)
}

func (a *App) retrainLoop(ctx context.Context) {
	defer close(a.done)

	if a.Cfg.RetrainInterval <= 0 {
		a.Log.Info("Background retraining disabled")
		return
	}
	a.Log.Info("Background retraining enabled", "interval", a.Cfg.RetrainInterval.String())

	ticker := time.NewTicker(a.Cfg.RetrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := a.Services.Retrain.Retrain(ctx, lifecycle.RetrainConfig{
				Epochs:       a.Cfg.RetrainEpochs,
				BatchSize:    a.Cfg.RetrainBatch,
				LearningRate: a.Cfg.RetrainLR,
				AutoPromote:  a.Cfg.AutoPromote,
			})
			if err != nil {
				a.Log.Error("Scheduled retrain failed", "error", err)
				continue
			}
			a.Log.Info("Scheduled retrain finished",
				"version", summary.Version,
				"accepted", summary.Success,
				"promoted", summary.ModelPromoted,
				"message", summary.Message,
			)
		}
	}
}

// Close stops background work and flushes the logger.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.cancel = nil
	}
	a.Log.Sync()
}
