package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/repos"
	"github.com/stockcast/stockcast-backend/internal/types"
)

const dateLayout = "2006-01-02"

// ForecastSummary is the caller-facing shape of one forecast, consumed by
// the API layer that sits outside this module.
type ForecastSummary struct {
	ProductName    string  `json:"product_name"`
	PredictedStock float64 `json:"predicted_stock"`
	CurrentStock   float64 `json:"current_stock"`
	StepsPredicted int     `json:"steps_predicted"`
	StartDate      string  `json:"start_date"`
	TargetDate     string  `json:"target_date"`
	Type           string  `json:"type"`
}

// RangePoint is one day inside a range summary.
type RangePoint struct {
	Date           string  `json:"date"`
	PredictedStock float64 `json:"predicted_stock"`
	Type           string  `json:"type"`
}

// RangeSummary is the caller-facing shape of a range forecast.
type RangeSummary struct {
	ProductName      string       `json:"product_name"`
	StartDate        string       `json:"start_date"`
	EndDate          string       `json:"end_date"`
	TotalDays        int          `json:"total_days"`
	DailyPredictions []RangePoint `json:"daily_predictions"`
	FinalStock       float64      `json:"final_stock"`
	CurrentStock     float64      `json:"current_stock"`
}

// DepletionSummary is the caller-facing shape of a depletion forecast.
type DepletionSummary struct {
	ProductName        string  `json:"product_name"`
	CurrentStock       float64 `json:"current_stock"`
	Depleted           bool    `json:"depleted"`
	DepletionDate      string  `json:"depletion_date,omitempty"`
	DaysUntilDepletion int     `json:"days_until_depletion,omitempty"`
	FinalPredicted     float64 `json:"final_predicted_stock"`
	Skipped            bool    `json:"skipped,omitempty"`
	SkipReason         string  `json:"skip_reason,omitempty"`
}

// CoverageReport describes what slice of a date range the cache holds.
type CoverageReport struct {
	TotalDays          int      `json:"total_days"`
	CachedDays         int      `json:"cached_days"`
	MissingDays        int      `json:"missing_days"`
	CoveragePercentage float64  `json:"coverage_percentage"`
	MissingDates       []string `json:"missing_dates"`
}

// ForecastService runs the engine, persists synthetic days to the cache,
// and shapes results for external callers.
type ForecastService interface {
	PredictProductDate(ctx context.Context, productID string, date time.Time) (*ForecastSummary, error)
	PredictRange(ctx context.Context, productID string, start, end time.Time) (*RangeSummary, error)
	PredictUntilDepletion(ctx context.Context, productID string) (*DepletionSummary, error)
	ScanDepletion(ctx context.Context) ([]*DepletionSummary, error)
	Coverage(ctx context.Context, productID string, start, end time.Time) (*CoverageReport, error)
	CacheStats(ctx context.Context, productID string) (repos.CacheStats, error)
}

type forecastService struct {
	engine    *forecast.Engine
	snapshots repos.SnapshotRepo
	cache     repos.PredictionCache
	log       *logger.Logger
}

func NewForecastService(engine *forecast.Engine, snapshots repos.SnapshotRepo, cache repos.PredictionCache, baseLog *logger.Logger) ForecastService {
	return &forecastService{
		engine:    engine,
		snapshots: snapshots,
		cache:     cache,
		log:       baseLog.With("service", "ForecastService"),
	}
}

func (s *forecastService) PredictProductDate(ctx context.Context, productID string, date time.Time) (*ForecastSummary, error) {
	res, err := s.engine.Forecast(ctx, productID, date)
	if err != nil {
		return nil, err
	}
	s.cacheSteps(ctx, productID, res.Steps)
	return &ForecastSummary{
		ProductName:    res.ProductID,
		PredictedStock: round2(res.PredictedStock),
		CurrentStock:   round2(res.CurrentStock),
		StepsPredicted: res.StepsPredicted,
		StartDate:      res.StartDate.Format(dateLayout),
		TargetDate:     res.TargetDate.Format(dateLayout),
		Type:           res.Type,
	}, nil
}

func (s *forecastService) PredictRange(ctx context.Context, productID string, start, end time.Time) (*RangeSummary, error) {
	res, err := s.engine.ForecastSeries(ctx, productID, start, end)
	if err != nil {
		return nil, err
	}
	s.cacheSteps(ctx, productID, res.Steps)

	out := &RangeSummary{
		ProductName:  res.ProductID,
		StartDate:    res.StartDate.Format(dateLayout),
		EndDate:      res.EndDate.Format(dateLayout),
		TotalDays:    len(res.Points),
		FinalStock:   round2(res.FinalStock),
		CurrentStock: round2(res.CurrentStock),
	}
	for _, p := range res.Points {
		out.DailyPredictions = append(out.DailyPredictions, RangePoint{
			Date:           p.Date.Format(dateLayout),
			PredictedStock: round2(p.PredictedStock),
			Type:           p.Type,
		})
	}
	return out, nil
}

func (s *forecastService) PredictUntilDepletion(ctx context.Context, productID string) (*DepletionSummary, error) {
	res, err := s.engine.ForecastUntilDepletion(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cacheSteps(ctx, productID, res.Steps)

	out := &DepletionSummary{
		ProductName:        res.ProductID,
		CurrentStock:       round2(res.CurrentStock),
		Depleted:           res.Depleted,
		DaysUntilDepletion: res.DaysUntilDepletion,
		FinalPredicted:     round2(res.FinalPredicted),
	}
	if res.Depleted {
		out.DepletionDate = res.DepletionDate.Format(dateLayout)
	}
	return out, nil
}

// ScanDepletion forecasts every known product concurrently. Products with
// too little history are reported as skipped, not failed: one thin product
// must not sink the whole scan.
func (s *forecastService) ScanDepletion(ctx context.Context) ([]*DepletionSummary, error) {
	products, err := s.snapshots.DistinctProducts(ctx, nil)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make([]*DepletionSummary, 0, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, pid := range products {
		pid := pid
		g.Go(func() error {
			summary, err := s.PredictUntilDepletion(gctx, pid)
			if err != nil {
				var insufficient *forecast.InsufficientHistoryError
				var unknown *forecast.UnknownProductError
				if errors.As(err, &insufficient) || errors.As(err, &unknown) {
					summary = &DepletionSummary{ProductName: pid, Skipped: true, SkipReason: err.Error()}
				} else {
					return err
				}
			}
			mu.Lock()
			out = append(out, summary)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out, nil
}

func (s *forecastService) Coverage(ctx context.Context, productID string, start, end time.Time) (*CoverageReport, error) {
	start = forecast.DateOnly(start)
	end = forecast.DateOnly(end)

	totalDays := int(end.Sub(start).Hours()/24) + 1
	if totalDays <= 0 {
		return &CoverageReport{MissingDates: []string{}}, nil
	}

	cached, err := s.cache.GetRange(ctx, productID, start, end)
	if err != nil {
		return nil, err
	}
	cachedDates := make(map[string]bool, len(cached))
	for _, row := range cached {
		cachedDates[forecast.DateOnly(row.PredictionDate).Format(dateLayout)] = true
	}

	out := &CoverageReport{TotalDays: totalDays, MissingDates: []string{}}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		if cachedDates[key] {
			out.CachedDays++
		} else {
			out.MissingDates = append(out.MissingDates, key)
		}
	}
	out.MissingDays = totalDays - out.CachedDays
	out.CoveragePercentage = round2(float64(out.CachedDays) / float64(totalDays) * 100)
	return out, nil
}

func (s *forecastService) CacheStats(ctx context.Context, productID string) (repos.CacheStats, error) {
	return s.cache.Stats(ctx, productID)
}

// cacheSteps persists synthetic days best-effort. The cache is an
// optimization: a forecast that cannot be cached is still returned.
func (s *forecastService) cacheSteps(ctx context.Context, productID string, steps []*types.InventorySnapshot) {
	if s.cache == nil || len(steps) == 0 {
		return
	}
	rows := make([]*types.StockPrediction, 0, len(steps))
	for _, step := range steps {
		rows = append(rows, forecast.CacheRowFromSnapshot(step))
	}
	if _, err := s.cache.UpsertMany(ctx, rows); err != nil {
		werr := &forecast.CacheWriteError{ProductID: productID, Date: steps[0].SnapshotDate, Err: err}
		s.log.Warn("Failed to cache forecast steps", "product_id", productID, "error", werr.Error())
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
