package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/model"
)

// Bootstrap trains a first production model from every stored snapshot.
// This is the only place a scaler is ever fitted; every later retrain
// reuses it so candidates stay comparable to production.
func (m *Manager) Bootstrap(ctx context.Context, cfg RetrainConfig) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.snapshots.ListAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load feature store: %w", err)
	}
	if len(rows) == 0 {
		return "", &TrainingDataError{Reason: "feature store is empty"}
	}
	SortRows(rows)

	scalerRows := make([][]float64, len(rows))
	for i, row := range rows {
		scalerRows[i] = forecast.ScalerRow(row)
	}
	scaler, err := model.FitScaler(forecast.ScalerColumns(), scalerRows)
	if err != nil {
		return "", fmt.Errorf("fit scaler: %w", err)
	}

	seqs, err := BuildSequences(rows, scaler)
	if err != nil {
		return "", err
	}
	if len(seqs) == 0 {
		return "", &TrainingDataError{Reason: "not enough history to form any training window"}
	}

	windows := make([][][]float64, len(seqs))
	targets := make([]float64, len(seqs))
	for i, seq := range seqs {
		windows[i] = seq.Window
		targets[i] = seq.Target
	}

	reg := model.NewRegressor(forecast.NSteps, len(forecast.FeatureColumns))
	epochs, err := reg.Train(windows, targets, model.TrainConfig{Epochs: cfg.Epochs, BatchSize: cfg.BatchSize, LearningRate: cfg.LearningRate})
	if err != nil {
		return "", fmt.Errorf("train initial model: %w", err)
	}

	version := model.NewVersionToken(time.Now().UTC())
	if err := m.store.SaveProduction(reg, scaler, version); err != nil {
		return "", fmt.Errorf("save initial production artifact: %w", err)
	}
	m.active.Swap(&model.Snapshot{Model: reg, Scaler: scaler, Version: version})
	m.log.Info("Bootstrapped initial production model",
		"version", version, "rows", len(rows), "sequences", len(seqs), "epochs", epochs)
	return version, nil
}
