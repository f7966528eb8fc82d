package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// SnapshotLister loads the full feature store for retraining.
type SnapshotLister interface {
	ListAll(ctx context.Context) ([]*types.InventorySnapshot, error)
}

// VersionRecorder appends one audit row per training run.
type VersionRecorder interface {
	Create(ctx context.Context, row *types.ModelVersion) error
}

// CacheInvalidator drops cached forecasts once the model that produced
// them is gone.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context) (int64, error)
}

// RetrainConfig controls one retrain run.
type RetrainConfig struct {
	Epochs    int
	BatchSize int
	// LearningRate of zero falls back to the trainer default.
	LearningRate float64
	// AutoPromote performs the accept swap inline. When false the run only
	// evaluates and records; a separate Promote call does the swap.
	AutoPromote bool
}

// EvaluationReport is the caller-facing outcome of one retrain run.
type EvaluationReport struct {
	RunID         uuid.UUID  `json:"run_id"`
	Version       string     `json:"version"`
	Decision      string     `json:"decision"`
	MetricsBefore Metrics    `json:"metrics_before"`
	MetricsAfter  Metrics    `json:"metrics_after"`
	Comparison    Comparison `json:"comparison"`
	Confidence    float64    `json:"confidence"`
	EpochsTrained int        `json:"epochs_trained"`
	RowsUsed      int        `json:"rows_used"`
	TrainingTime  float64    `json:"training_time_seconds"`
	Message       string     `json:"message"`
	Promoted      bool       `json:"promoted"`
}

// Manager owns the model lifecycle: retrain a candidate, evaluate it
// against production on a shared held-out partition, record the decision,
// and swap the active pointer on promotion. Production is only ever
// replaced by a candidate proven not worse per the configured policy.
type Manager struct {
	snapshots SnapshotLister
	store     *model.ArtifactStore
	active    *model.ActiveModel
	versions  VersionRecorder
	cache     CacheInvalidator
	policy    Policy
	log       *logger.Logger

	// One retrain or promote at a time. Forecast reads never take this
	// lock; they see the active pointer before or after a swap.
	mu sync.Mutex
}

func NewManager(
	snapshots SnapshotLister,
	store *model.ArtifactStore,
	active *model.ActiveModel,
	versions VersionRecorder,
	cache CacheInvalidator,
	policy Policy,
	baseLog *logger.Logger,
) *Manager {
	return &Manager{
		snapshots: snapshots,
		store:     store,
		active:    active,
		versions:  versions,
		cache:     cache,
		policy:    policy,
		log:       baseLog.With("service", "ModelLifecycleManager"),
	}
}

// RetrainAndEvaluate trains a candidate from the production weights and
// evaluates both models on the same held-out partition. It never mutates
// production: acceptance here is a decision, and the swap happens in
// Promote (or inline when cfg.AutoPromote is set).
func (m *Manager) RetrainAndEvaluate(ctx context.Context, cfg RetrainConfig) (*EvaluationReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	started := time.Now()
	version := model.NewVersionToken(started)
	report := &EvaluationReport{
		RunID:   uuid.New(),
		Version: version,
	}
	log := m.log.With("version", version)
	log.Info("Starting retrain run", "epochs", cfg.Epochs, "batch_size", cfg.BatchSize)

	backupVersion, err := m.store.BackupProduction()
	if err != nil {
		return nil, fmt.Errorf("backup production before retrain: %w", err)
	}

	report, runErr := m.retrain(ctx, cfg, report, log)
	if runErr != nil {
		// Anything that failed mid-run restores the backup so production
		// can never be left partially replaced.
		if restoreErr := m.store.RestoreVersion(backupVersion); restoreErr != nil {
			log.Error("Backup restore after failed retrain also failed", "error", restoreErr)
		}
		m.recordRun(ctx, report, types.ModelDecisionError, runErr.Error(), log)
		return nil, runErr
	}

	report.TrainingTime = time.Since(started).Seconds()
	m.recordRun(ctx, report, report.Decision, report.Message, log)

	if report.Decision == types.ModelDecisionAccepted && cfg.AutoPromote {
		if err := m.promoteLocked(ctx, report.Version, log); err != nil {
			return nil, err
		}
		report.Promoted = true
	}
	// Written last so the on-disk record carries the final timing and
	// promote outcome. Metadata is advisory and never fails the run.
	if err := m.store.WriteVersionMetadata(report.Version, report); err != nil {
		log.Warn("Failed to write version metadata", "error", err)
	}
	return report, nil
}

func (m *Manager) retrain(ctx context.Context, cfg RetrainConfig, report *EvaluationReport, log *logger.Logger) (*EvaluationReport, error) {
	rows, err := m.snapshots.ListAll(ctx)
	if err != nil {
		return report, fmt.Errorf("load feature store: %w", err)
	}
	if len(rows) == 0 {
		return report, &TrainingDataError{Reason: "feature store is empty"}
	}
	SortRows(rows)
	report.RowsUsed = len(rows)

	prodModel, scaler, prodVersion, err := m.store.LoadProduction()
	if err != nil {
		return report, err
	}
	log.Info("Loaded production model", "production_version", prodVersion, "rows", len(rows))

	trainRows, valRows, testRows := SplitRows(rows, 0.70, 0.15)

	// The candidate trains against the existing scaler, never a refitted
	// one, so both models are compared on the same numeric scale.
	trainSeqs, err := BuildSequences(append(append([]*types.InventorySnapshot(nil), trainRows...), valRows...), scaler)
	if err != nil {
		return report, err
	}
	testSeqs, err := BuildSequences(testRows, scaler)
	if err != nil {
		return report, err
	}
	if len(trainSeqs) == 0 {
		return report, &TrainingDataError{Reason: "no training sequences after temporal split"}
	}
	if len(testSeqs) == 0 {
		return report, &TrainingDataError{Reason: "no held-out sequences after temporal split"}
	}

	before, err := Evaluate(prodModel, testSeqs)
	if err != nil {
		return report, fmt.Errorf("evaluate production model: %w", err)
	}
	report.MetricsBefore = before
	log.Info("Evaluated production model", "rmse", before.RMSE, "mae", before.MAE, "samples", before.Samples)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	candidate := prodModel.Clone()
	windows := make([][][]float64, len(trainSeqs))
	targets := make([]float64, len(trainSeqs))
	for i, seq := range trainSeqs {
		windows[i] = seq.Window
		targets[i] = seq.Target
	}
	epochs, err := candidate.Train(windows, targets, model.TrainConfig{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, LearningRate: cfg.LearningRate})
	if err != nil {
		return report, fmt.Errorf("train candidate: %w", err)
	}
	report.EpochsTrained = epochs

	after, err := Evaluate(candidate, testSeqs)
	if err != nil {
		return report, fmt.Errorf("evaluate candidate: %w", err)
	}
	report.MetricsAfter = after
	report.Comparison = Compare(before, after)
	report.Confidence = Confidence(report.Comparison)
	log.Info("Evaluated candidate",
		"rmse", after.RMSE, "mae", after.MAE,
		"rmse_improvement_pct", report.Comparison.RMSEImprovementPct,
		"mae_improvement_pct", report.Comparison.MAEImprovementPct,
	)

	accepted, reason := m.policy.Decide(report.Comparison)
	report.Message = reason
	if accepted {
		report.Decision = types.ModelDecisionAccepted
	} else {
		// A rejection is a valid policy outcome, not a fault.
		report.Decision = types.ModelDecisionRejected
	}

	if err := m.store.SaveVersion(report.Version, candidate, scaler); err != nil {
		return report, fmt.Errorf("save candidate artifact: %w", err)
	}
	return report, nil
}

// Promote atomically swaps a stored candidate into production, invalidates
// the prediction cache, and hot-swaps the active pointer.
func (m *Manager) Promote(ctx context.Context, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.promoteLocked(ctx, version, m.log.With("version", version))
}

func (m *Manager) promoteLocked(ctx context.Context, version string, log *logger.Logger) error {
	if !m.store.HasVersion(version) {
		return fmt.Errorf("no artifact stored for version %s", version)
	}

	// Outgoing production is retained under its own version token for
	// rollback.
	if _, err := m.store.BackupProduction(); err != nil {
		return fmt.Errorf("backup outgoing production: %w", err)
	}

	candidate, scaler, err := m.store.LoadVersion(version)
	if err != nil {
		return err
	}
	if err := m.store.SaveProduction(candidate, scaler, version); err != nil {
		return fmt.Errorf("promote candidate to production: %w", err)
	}
	m.active.Swap(&model.Snapshot{Model: candidate, Scaler: scaler, Version: version})

	// Forecasts computed under the previous model are no longer
	// trustworthy.
	if m.cache != nil {
		if _, err := m.cache.InvalidateAll(ctx); err != nil {
			log.Warn("Cache invalidation after promote failed", "error", err)
		}
	}
	log.Info("Promoted candidate to production")
	return nil
}

// Discard drops a rejected candidate's artifact files. The audit row stays.
func (m *Manager) Discard(version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.DiscardVersion(version)
}

// RestoreLatestBackup loads the newest stored version into production and
// the active pointer. Recovery path when the production artifact cannot be
// loaded at start.
func (m *Manager) RestoreLatestBackup() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version, err := m.store.LatestVersion()
	if err != nil {
		return "", err
	}
	if version == "" {
		return "", fmt.Errorf("no backup versions available")
	}
	if err := m.store.RestoreVersion(version); err != nil {
		return "", err
	}
	restored, scaler, err := m.store.LoadVersion(version)
	if err != nil {
		return "", err
	}
	m.active.Swap(&model.Snapshot{Model: restored, Scaler: scaler, Version: version})
	return version, nil
}

func (m *Manager) recordRun(ctx context.Context, report *EvaluationReport, decision, message string, log *logger.Logger) {
	if m.versions == nil {
		return
	}
	metrics, err := json.Marshal(map[string]any{
		"before":     report.MetricsBefore,
		"after":      report.MetricsAfter,
		"comparison": report.Comparison,
		"confidence": report.Confidence,
	})
	if err != nil {
		log.Warn("Failed to encode metrics for audit row", "error", err)
		metrics = []byte("{}")
	}
	row := &types.ModelVersion{
		Version:       report.Version,
		Decision:      decision,
		Metrics:       datatypes.JSON(metrics),
		Message:       message,
		EpochsTrained: report.EpochsTrained,
	}
	if err := m.versions.Create(ctx, row); err != nil {
		log.Warn("Failed to append model version audit row", "error", err)
	}
}

// Reload re-reads the production pair from disk and swaps it into the
// active pointer. Lets an operator pick up artifacts replaced out of band.
func (m *Manager) Reload() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prod, scaler, version, err := m.store.LoadProduction()
	if err != nil {
		return "", err
	}
	m.active.Swap(&model.Snapshot{Model: prod, Scaler: scaler, Version: version})
	m.log.Info("Reloaded production model from disk", "version", version)
	return version, nil
}
