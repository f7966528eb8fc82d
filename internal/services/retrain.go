package services

import (
	"context"

	"github.com/stockcast/stockcast-backend/internal/lifecycle"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/repos"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// RetrainSummary is the caller-facing shape of one retrain run.
type RetrainSummary struct {
	Success             bool    `json:"success"`
	Message             string  `json:"message"`
	Version             string  `json:"version"`
	RowsProcessed       int     `json:"rows_processed"`
	ModelRetrained      bool    `json:"model_retrained"`
	ModelPromoted       bool    `json:"model_promoted"`
	TrainingTimeSeconds float64 `json:"training_time_seconds"`
	PreviousRMSE        float64 `json:"previous_rmse"`
	NewRMSE             float64 `json:"new_rmse"`
	PreviousMAE         float64 `json:"previous_mae"`
	NewMAE              float64 `json:"new_mae"`
	RMSEImprovementPct  float64 `json:"rmse_improvement_pct"`
	MAEImprovementPct   float64 `json:"mae_improvement_pct"`
	EpochsTrained       int     `json:"epochs_trained"`
	Confidence          float64 `json:"confidence"`
}

// RetrainService drives model retraining and exposes lifecycle controls to
// external callers.
type RetrainService interface {
	Retrain(ctx context.Context, cfg lifecycle.RetrainConfig) (*RetrainSummary, error)
	Promote(ctx context.Context, version string) error
	Discard(version string) error
	Reload() (string, error)
	History(ctx context.Context, limit int) ([]*types.ModelVersion, error)
}

type retrainService struct {
	manager  *lifecycle.Manager
	versions repos.ModelVersionRepo
	log      *logger.Logger
}

func NewRetrainService(manager *lifecycle.Manager, versions repos.ModelVersionRepo, baseLog *logger.Logger) RetrainService {
	return &retrainService{
		manager:  manager,
		versions: versions,
		log:      baseLog.With("service", "RetrainService"),
	}
}

func (s *retrainService) Retrain(ctx context.Context, cfg lifecycle.RetrainConfig) (*RetrainSummary, error) {
	report, err := s.manager.RetrainAndEvaluate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &RetrainSummary{
		Success:             report.Decision == types.ModelDecisionAccepted,
		Message:             report.Message,
		Version:             report.Version,
		RowsProcessed:       report.RowsUsed,
		ModelRetrained:      true,
		ModelPromoted:       report.Promoted,
		TrainingTimeSeconds: report.TrainingTime,
		PreviousRMSE:        report.MetricsBefore.RMSE,
		NewRMSE:             report.MetricsAfter.RMSE,
		PreviousMAE:         report.MetricsBefore.MAE,
		NewMAE:              report.MetricsAfter.MAE,
		RMSEImprovementPct:  report.Comparison.RMSEImprovementPct,
		MAEImprovementPct:   report.Comparison.MAEImprovementPct,
		EpochsTrained:       report.EpochsTrained,
		Confidence:          report.Confidence,
	}, nil
}

func (s *retrainService) Promote(ctx context.Context, version string) error {
	return s.manager.Promote(ctx, version)
}

func (s *retrainService) Discard(version string) error {
	return s.manager.Discard(version)
}

func (s *retrainService) Reload() (string, error) {
	return s.manager.Reload()
}

func (s *retrainService) History(ctx context.Context, limit int) ([]*types.ModelVersion, error) {
	return s.versions.List(ctx, nil, limit)
}
