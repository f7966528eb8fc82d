package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

type fakeLister struct {
	rows []*types.InventorySnapshot
}

func (f *fakeLister) ListAll(_ context.Context) ([]*types.InventorySnapshot, error) {
	return f.rows, nil
}

type fakeRecorder struct {
	rows []*types.ModelVersion
}

func (f *fakeRecorder) Create(_ context.Context, row *types.ModelVersion) error {
	f.rows = append(f.rows, row)
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) InvalidateAll(_ context.Context) (int64, error) {
	f.calls++
	return 0, nil
}

const seedVersion = "20240101_000000"

type managerFixture struct {
	manager     *Manager
	store       *model.ArtifactStore
	active      *model.ActiveModel
	recorder    *fakeRecorder
	invalidator *fakeInvalidator
}

func newManagerFixture(t *testing.T, rows []*types.InventorySnapshot, policy Policy) *managerFixture {
	t.Helper()
	store := model.NewArtifactStore(t.TempDir(), logger.NewNop())

	scRows := rows
	if len(scRows) == 0 {
		scRows = productRows("seed", 10)
	}
	sc := fittedScaler(t, scRows)
	prod := model.NewRegressor(forecast.NSteps, len(forecast.FeatureColumns))
	if err := store.SaveProduction(prod, sc, seedVersion); err != nil {
		t.Fatalf("SaveProduction: %v", err)
	}
	active := model.NewActiveModel(&model.Snapshot{Model: prod, Scaler: sc, Version: seedVersion})

	recorder := &fakeRecorder{}
	invalidator := &fakeInvalidator{}
	manager := NewManager(&fakeLister{rows: rows}, store, active, recorder, invalidator, policy, logger.NewNop())
	return &managerFixture{
		manager:     manager,
		store:       store,
		active:      active,
		recorder:    recorder,
		invalidator: invalidator,
	}
}

func TestRetrainWithoutAutoPromoteLeavesProductionUntouched(t *testing.T) {
	fx := newManagerFixture(t, productRows("p1", 60), DefaultPolicy())

	report, err := fx.manager.RetrainAndEvaluate(context.Background(), RetrainConfig{Epochs: 2})
	if err != nil {
		t.Fatalf("RetrainAndEvaluate: %v", err)
	}
	if report.Promoted {
		t.Fatalf("promoted without auto-promote")
	}
	if report.RowsUsed != 60 {
		t.Fatalf("rows used: want=60 got=%d", report.RowsUsed)
	}

	// Production on disk and the serving pointer are both untouched.
	version, err := fx.store.ProductionVersion()
	if err != nil {
		t.Fatalf("ProductionVersion: %v", err)
	}
	if version != seedVersion {
		t.Fatalf("production version changed: want=%q got=%q", seedVersion, version)
	}
	if fx.active.Version() != seedVersion {
		t.Fatalf("active version changed: want=%q got=%q", seedVersion, fx.active.Version())
	}
	if fx.invalidator.calls != 0 {
		t.Fatalf("cache invalidated without a promote")
	}

	// The candidate artifact and one audit row exist either way.
	if !fx.store.HasVersion(report.Version) {
		t.Fatalf("candidate artifact missing for %q", report.Version)
	}
	if len(fx.recorder.rows) != 1 {
		t.Fatalf("audit rows: want=1 got=%d", len(fx.recorder.rows))
	}
	if fx.recorder.rows[0].Decision != report.Decision {
		t.Fatalf("audit decision: want=%q got=%q", report.Decision, fx.recorder.rows[0].Decision)
	}
}

func TestRetrainAutoPromoteSwapsProductionAndClearsCache(t *testing.T) {
	// A huge degradation allowance makes acceptance deterministic.
	policy := Policy{Mode: PolicyMaxDegradation, MaxDegradationPct: 1e6}
	fx := newManagerFixture(t, productRows("p1", 60), policy)

	report, err := fx.manager.RetrainAndEvaluate(context.Background(), RetrainConfig{Epochs: 2, AutoPromote: true})
	if err != nil {
		t.Fatalf("RetrainAndEvaluate: %v", err)
	}
	if report.Decision != types.ModelDecisionAccepted {
		t.Fatalf("decision: want=%q got=%q (%s)", types.ModelDecisionAccepted, report.Decision, report.Message)
	}
	if !report.Promoted {
		t.Fatalf("report not marked promoted")
	}

	version, err := fx.store.ProductionVersion()
	if err != nil {
		t.Fatalf("ProductionVersion: %v", err)
	}
	if version != report.Version {
		t.Fatalf("production version: want=%q got=%q", report.Version, version)
	}
	if fx.active.Version() != report.Version {
		t.Fatalf("active version: want=%q got=%q", report.Version, fx.active.Version())
	}
	if fx.invalidator.calls != 1 {
		t.Fatalf("cache invalidations: want=1 got=%d", fx.invalidator.calls)
	}
	// The outgoing production stays available for rollback.
	if !fx.store.HasVersion(seedVersion) {
		t.Fatalf("outgoing production not retained under %q", seedVersion)
	}
}

func TestVersionMetadataRecordsPromoteAndTiming(t *testing.T) {
	policy := Policy{Mode: PolicyMaxDegradation, MaxDegradationPct: 1e6}
	fx := newManagerFixture(t, productRows("p1", 60), policy)

	report, err := fx.manager.RetrainAndEvaluate(context.Background(), RetrainConfig{Epochs: 2, AutoPromote: true})
	if err != nil {
		t.Fatalf("RetrainAndEvaluate: %v", err)
	}
	if !report.Promoted {
		t.Fatalf("run not promoted, fixture broken")
	}

	// The on-disk record carries the final run outcome, not a mid-run
	// snapshot with zeroed timing and promote fields.
	var meta EvaluationReport
	if err := fx.store.ReadVersionMetadata(report.Version, &meta); err != nil {
		t.Fatalf("ReadVersionMetadata: %v", err)
	}
	if !meta.Promoted {
		t.Fatalf("metadata promoted flag: want=true got=false")
	}
	if meta.TrainingTime <= 0 {
		t.Fatalf("metadata training time: want>0 got=%v", meta.TrainingTime)
	}
	if meta.Version != report.Version || meta.Decision != types.ModelDecisionAccepted {
		t.Fatalf("metadata record: %+v", meta)
	}
}

func TestRetrainEmptyFeatureStoreFails(t *testing.T) {
	fx := newManagerFixture(t, nil, DefaultPolicy())

	_, err := fx.manager.RetrainAndEvaluate(context.Background(), RetrainConfig{Epochs: 2})
	var dataErr *TrainingDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error type: want TrainingDataError, got %T (%v)", err, err)
	}

	// The failed run is still recorded, and production survives.
	if len(fx.recorder.rows) != 1 || fx.recorder.rows[0].Decision != types.ModelDecisionError {
		t.Fatalf("audit rows after failure: %+v", fx.recorder.rows)
	}
	version, err := fx.store.ProductionVersion()
	if err != nil {
		t.Fatalf("ProductionVersion: %v", err)
	}
	if version != seedVersion {
		t.Fatalf("production version after failed run: want=%q got=%q", seedVersion, version)
	}
}

func TestPromoteUnknownVersionFails(t *testing.T) {
	fx := newManagerFixture(t, productRows("p1", 20), DefaultPolicy())
	if err := fx.manager.Promote(context.Background(), "20990101_000000"); err == nil {
		t.Fatalf("Promote of unknown version: expected error, got nil")
	}
	if fx.active.Version() != seedVersion {
		t.Fatalf("active version changed by failed promote")
	}
}

func TestDiscardRemovesCandidateArtifact(t *testing.T) {
	fx := newManagerFixture(t, productRows("p1", 20), DefaultPolicy())

	sc := fittedScaler(t, productRows("p1", 20))
	cand := model.NewRegressor(forecast.NSteps, len(forecast.FeatureColumns))
	if err := fx.store.SaveVersion("20250601_000000", cand, sc); err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if err := fx.manager.Discard("20250601_000000"); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if fx.store.HasVersion("20250601_000000") {
		t.Fatalf("candidate artifact survived discard")
	}
}

func TestReloadPicksUpOnDiskProduction(t *testing.T) {
	fx := newManagerFixture(t, productRows("p1", 20), DefaultPolicy())

	sc := fittedScaler(t, productRows("p1", 20))
	replacement := model.NewRegressor(forecast.NSteps, len(forecast.FeatureColumns))
	replacement.Bias = 7
	if err := fx.store.SaveProduction(replacement, sc, "20250701_000000"); err != nil {
		t.Fatalf("SaveProduction: %v", err)
	}

	version, err := fx.manager.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if version != "20250701_000000" {
		t.Fatalf("reloaded version: want=%q got=%q", "20250701_000000", version)
	}
	if fx.active.Version() != "20250701_000000" {
		t.Fatalf("active version: want=%q got=%q", "20250701_000000", fx.active.Version())
	}
}

func TestRestoreLatestBackupAfterCorruption(t *testing.T) {
	fx := newManagerFixture(t, productRows("p1", 20), DefaultPolicy())

	if _, err := fx.store.BackupProduction(); err != nil {
		t.Fatalf("BackupProduction: %v", err)
	}

	restored, err := fx.manager.RestoreLatestBackup()
	if err != nil {
		t.Fatalf("RestoreLatestBackup: %v", err)
	}
	if restored != seedVersion {
		t.Fatalf("restored version: want=%q got=%q", seedVersion, restored)
	}
	if fx.active.Version() != seedVersion {
		t.Fatalf("active version after restore: want=%q got=%q", seedVersion, fx.active.Version())
	}
}

func TestBootstrapTrainsFirstModel(t *testing.T) {
	store := model.NewArtifactStore(t.TempDir(), logger.NewNop())
	active := model.NewActiveModel(nil)
	manager := NewManager(&fakeLister{rows: productRows("p1", 30)}, store, active, &fakeRecorder{}, &fakeInvalidator{}, DefaultPolicy(), logger.NewNop())

	version, err := manager.Bootstrap(context.Background(), RetrainConfig{Epochs: 3})
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if version == "" {
		t.Fatalf("empty version token")
	}
	if active.Version() != version {
		t.Fatalf("active version: want=%q got=%q", version, active.Version())
	}
	onDisk, err := store.ProductionVersion()
	if err != nil {
		t.Fatalf("ProductionVersion: %v", err)
	}
	if onDisk != version {
		t.Fatalf("production version: want=%q got=%q", version, onDisk)
	}
}

func TestBootstrapEmptyStoreFails(t *testing.T) {
	store := model.NewArtifactStore(t.TempDir(), logger.NewNop())
	manager := NewManager(&fakeLister{}, store, model.NewActiveModel(nil), &fakeRecorder{}, &fakeInvalidator{}, DefaultPolicy(), logger.NewNop())

	_, err := manager.Bootstrap(context.Background(), RetrainConfig{})
	var dataErr *TrainingDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error type: want TrainingDataError, got %T (%v)", err, err)
	}
}
