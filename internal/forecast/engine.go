package forecast

import (
	"context"
	"time"

	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/platform/logger"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// Forecast result types.
const (
	TypeActual    = "actual"
	TypeRecursive = "recursive_forecast"
)

// DefaultMaxSteps bounds the recursive loop of a single forecast call.
const DefaultMaxSteps = 365

// Result is the outcome of one forecast call.
type Result struct {
	ProductID      string
	PredictedStock float64
	CurrentStock   float64
	StepsPredicted int
	// StartDate is the last real snapshot date the recursion started from.
	StartDate  time.Time
	TargetDate time.Time
	Type       string
	// Steps holds every synthetic day generated on the way to TargetDate,
	// oldest first. The engine does not persist them; callers decide which
	// to hand to the cache.
	Steps []*types.InventorySnapshot
}

// SeriesPoint is one day of a range forecast.
type SeriesPoint struct {
	Date           time.Time
	PredictedStock float64
	Type           string
}

// SeriesResult is the outcome of a range forecast.
type SeriesResult struct {
	ProductID    string
	StartDate    time.Time
	EndDate      time.Time
	Points       []SeriesPoint
	FinalStock   float64
	CurrentStock float64
	Steps        []*types.InventorySnapshot
}

// DepletionResult reports the first day predicted stock reaches zero.
type DepletionResult struct {
	ProductID          string
	CurrentStock       float64
	Depleted           bool
	DepletionDate      time.Time
	DaysUntilDepletion int
	FinalPredicted     float64
	StartDate          time.Time
	Steps              []*types.InventorySnapshot
}

// Engine serves per-product forecasts. Dates on or before the last real
// snapshot resolve to stored history; later dates are predicted one
// synthetic day at a time from a fixed-length window.
type Engine struct {
	snapshots SnapshotSource
	builder   *WindowBuilder
	active    *model.ActiveModel
	maxSteps  int
	log       *logger.Logger
}

func NewEngine(snapshots SnapshotSource, builder *WindowBuilder, active *model.ActiveModel, baseLog *logger.Logger) *Engine {
	return &Engine{
		snapshots: snapshots,
		builder:   builder,
		active:    active,
		maxSteps:  DefaultMaxSteps,
		log:       baseLog.With("service", "ForecastEngine"),
	}
}

// Forecast predicts stock on hand for productID at targetDate.
func (e *Engine) Forecast(ctx context.Context, productID string, targetDate time.Time) (*Result, error) {
	targetDate = DateOnly(targetDate)

	last, err := e.snapshots.Last(ctx, productID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, &UnknownProductError{ProductID: productID}
	}
	lastDate := DateOnly(last.SnapshotDate)
	currentStock := last.QuantityOnHand

	// Historical path: the answer already exists.
	if !targetDate.After(lastDate) {
		actual, err := e.snapshots.Get(ctx, productID, targetDate)
		if err != nil {
			return nil, err
		}
		if actual == nil {
			// A hole inside recorded history. Serve the closest earlier
			// snapshot rather than predicting a day the series skipped.
			window, err := e.snapshots.ListBefore(ctx, productID, targetDate.AddDate(0, 0, 1))
			if err != nil {
				return nil, err
			}
			if len(window) == 0 {
				return nil, &InsufficientHistoryError{ProductID: productID, Required: 1, Available: 0}
			}
			actual = window[len(window)-1]
		}
		return &Result{
			ProductID:      productID,
			PredictedStock: actual.QuantityOnHand,
			CurrentStock:   currentStock,
			StepsPredicted: 0,
			StartDate:      lastDate,
			TargetDate:     targetDate,
			Type:           TypeActual,
		}, nil
	}

	horizon := daysBetween(lastDate, targetDate)
	if horizon > e.maxSteps {
		return nil, &HorizonExceededError{ProductID: productID, Days: horizon, MaxSteps: e.maxSteps}
	}

	run, err := e.seed(ctx, last)
	if err != nil {
		return nil, err
	}

	predicted := currentStock
	var steps []*types.InventorySnapshot
	for date := lastDate.AddDate(0, 0, 1); !date.After(targetDate); date = date.AddDate(0, 0, 1) {
		synthetic, err := run.advance(date)
		if err != nil {
			return nil, err
		}
		predicted = synthetic.QuantityAvailable
		steps = append(steps, synthetic)
	}

	return &Result{
		ProductID:      productID,
		PredictedStock: predicted,
		CurrentStock:   currentStock,
		StepsPredicted: len(steps),
		StartDate:      lastDate,
		TargetDate:     targetDate,
		Type:           TypeRecursive,
		Steps:          steps,
	}, nil
}

// ForecastSeries predicts one value per day over [startDate, endDate] in a
// single recursive pass. Days inside recorded history come back as stored
// actuals.
func (e *Engine) ForecastSeries(ctx context.Context, productID string, startDate, endDate time.Time) (*SeriesResult, error) {
	startDate = DateOnly(startDate)
	endDate = DateOnly(endDate)
	if endDate.Before(startDate) {
		return nil, &InvalidRangeError{ProductID: productID, Start: startDate, End: endDate}
	}

	last, err := e.snapshots.Last(ctx, productID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, &UnknownProductError{ProductID: productID}
	}
	lastDate := DateOnly(last.SnapshotDate)

	out := &SeriesResult{
		ProductID:    productID,
		StartDate:    startDate,
		EndDate:      endDate,
		CurrentStock: last.QuantityOnHand,
	}

	// Historical part of the range.
	for date := startDate; !date.After(endDate) && !date.After(lastDate); date = date.AddDate(0, 0, 1) {
		actual, err := e.snapshots.Get(ctx, productID, date)
		if err != nil {
			return nil, err
		}
		if actual == nil {
			continue
		}
		out.Points = append(out.Points, SeriesPoint{Date: date, PredictedStock: actual.QuantityOnHand, Type: TypeActual})
		out.FinalStock = actual.QuantityOnHand
	}
	if !endDate.After(lastDate) {
		return out, nil
	}

	horizon := daysBetween(lastDate, endDate)
	if horizon > e.maxSteps {
		return nil, &HorizonExceededError{ProductID: productID, Days: horizon, MaxSteps: e.maxSteps}
	}

	run, err := e.seed(ctx, last)
	if err != nil {
		return nil, err
	}
	for date := lastDate.AddDate(0, 0, 1); !date.After(endDate); date = date.AddDate(0, 0, 1) {
		synthetic, err := run.advance(date)
		if err != nil {
			return nil, err
		}
		if !date.Before(startDate) {
			out.Points = append(out.Points, SeriesPoint{Date: date, PredictedStock: synthetic.QuantityAvailable, Type: TypeRecursive})
			out.Steps = append(out.Steps, synthetic)
		}
		out.FinalStock = synthetic.QuantityAvailable
	}
	return out, nil
}

// ForecastUntilDepletion runs the same step loop and stops the first time
// predicted stock reaches zero or below, or at the iteration cap.
func (e *Engine) ForecastUntilDepletion(ctx context.Context, productID string) (*DepletionResult, error) {
	last, err := e.snapshots.Last(ctx, productID)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, &UnknownProductError{ProductID: productID}
	}
	lastDate := DateOnly(last.SnapshotDate)

	out := &DepletionResult{
		ProductID:    productID,
		CurrentStock: last.QuantityOnHand,
		StartDate:    lastDate,
	}

	run, err := e.seed(ctx, last)
	if err != nil {
		return nil, err
	}
	date := lastDate
	for i := 0; i < e.maxSteps; i++ {
		date = date.AddDate(0, 0, 1)
		synthetic, err := run.advance(date)
		if err != nil {
			return nil, err
		}
		out.Steps = append(out.Steps, synthetic)
		out.FinalPredicted = synthetic.QuantityAvailable
		if synthetic.QuantityAvailable <= 0 {
			out.Depleted = true
			out.DepletionDate = date
			out.DaysUntilDepletion = len(out.Steps)
			return out, nil
		}
	}
	return out, nil
}

// forecastRun carries the window through one recursive forecast call. It is never
// shared between calls, so a concurrent model swap cannot change the pair
// mid-recursion.
type forecastRun struct {
	snap     *model.Snapshot
	window   []*types.InventorySnapshot
	lastReal *types.InventorySnapshot
}

func (e *Engine) seed(ctx context.Context, lastReal *types.InventorySnapshot) (*forecastRun, error) {
	lastDate := DateOnly(lastReal.SnapshotDate)
	window, err := e.builder.BuildWindow(ctx, lastReal.ProductID, lastDate.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	snap, err := e.active.Snapshot()
	if err != nil {
		return nil, err
	}
	return &forecastRun{
		snap:     snap,
		window:   window,
		lastReal: lastReal,
	}, nil
}

// advance performs one single-step-ahead prediction: scale the window, run
// the model, inverse-scale, build the synthetic day, slide the window.
func (r *forecastRun) advance(date time.Time) (*types.InventorySnapshot, error) {
	rows := make([][]float64, len(r.window))
	for i, s := range r.window {
		rows[i] = ScalerRow(s)
	}
	scaled, err := r.snap.Scaler.TransformRows(rows)
	if err != nil {
		return nil, err
	}

	inputs := make([][]float64, len(scaled))
	for i, row := range scaled {
		inputs[i] = row[:len(FeatureColumns)]
	}
	predScaled, err := r.snap.Model.Predict(inputs)
	if err != nil {
		return nil, err
	}

	targetIdx := r.snap.Scaler.ColumnIndex(TargetColumn)
	predicted, err := r.snap.Scaler.InverseColumn(targetIdx, predScaled)
	if err != nil {
		return nil, err
	}

	synthetic := SyntheticSnapshot(r.lastReal, date, predicted)
	r.window = append(r.window[1:], synthetic)
	return synthetic, nil
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// SetMaxSteps overrides the recursion cap. Values at or below zero keep
// the current cap.
func (e *Engine) SetMaxSteps(n int) {
	if n > 0 {
		e.maxSteps = n
	}
}
