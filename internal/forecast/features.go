package forecast

import (
	"time"

	"github.com/stockcast/stockcast-backend/internal/types"
)

// NSteps is the fixed length of the window fed to the model.
const NSteps = 7

// TargetColumn is the value the model predicts for the next day.
const TargetColumn = "quantity_available"

// FeatureColumns is the model input ordering. The scaler is fitted over
// FeatureColumns + TargetColumn, in that order, and both training and
// inference must use it unchanged.
var FeatureColumns = []string{
	"quantity_on_hand",
	"quantity_reserved",
	"reorder_point",
	"optimal_stock_level",
	"average_daily_usage",
	"stock_status",
	"day_of_week",
	"is_weekend",
	"category",
}

// ScalerColumns returns FeatureColumns followed by TargetColumn.
func ScalerColumns() []string {
	out := make([]string, 0, len(FeatureColumns)+1)
	out = append(out, FeatureColumns...)
	return append(out, TargetColumn)
}

// FeatureRow extracts the model input vector from a snapshot, in
// FeatureColumns order.
func FeatureRow(s *types.InventorySnapshot) []float64 {
	return []float64{
		s.QuantityOnHand,
		s.QuantityReserved,
		s.ReorderPoint,
		s.OptimalStockLevel,
		s.AverageDailyUsage,
		float64(s.StockStatus),
		float64(s.DayOfWeek),
		float64(s.IsWeekend),
		float64(s.Category),
	}
}

// ScalerRow extracts the FeatureColumns + TargetColumn vector used when
// fitting and applying the scaler.
func ScalerRow(s *types.InventorySnapshot) []float64 {
	return append(FeatureRow(s), s.QuantityAvailable)
}

// DateOnly truncates to a UTC calendar day. All snapshot and prediction
// dates are stored this way.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayOfWeek maps to Monday=0 .. Sunday=6, matching the training data.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekendFlag is 1 for Saturday and Sunday.
func WeekendFlag(dayOfWeek int) int {
	if dayOfWeek >= 5 {
		return 1
	}
	return 0
}

// SyntheticSnapshot builds the window element for a model-generated day.
// The predicted quantity becomes both on-hand and available; static fields
// come from the most recent real snapshot so fields the model does not
// predict cannot drift across recursive steps; calendar fields are
// recomputed from the new date.
func SyntheticSnapshot(lastReal *types.InventorySnapshot, date time.Time, predicted float64) *types.InventorySnapshot {
	dow := DayOfWeek(date)
	return &types.InventorySnapshot{
		ProductID:         lastReal.ProductID,
		SnapshotDate:      date,
		QuantityOnHand:    predicted,
		QuantityAvailable: predicted,
		QuantityReserved:  lastReal.QuantityReserved,
		ReorderPoint:      lastReal.ReorderPoint,
		OptimalStockLevel: lastReal.OptimalStockLevel,
		AverageDailyUsage: lastReal.AverageDailyUsage,
		StockStatus:       lastReal.StockStatus,
		Category:          lastReal.Category,
		DayOfWeek:         dow,
		IsWeekend:         WeekendFlag(dow),
	}
}

// SnapshotFromCacheRow rebuilds a window element from a cached prediction.
func SnapshotFromCacheRow(p *types.StockPrediction) *types.InventorySnapshot {
	return &types.InventorySnapshot{
		ProductID:         p.ProductID,
		SnapshotDate:      p.PredictionDate,
		QuantityOnHand:    p.QuantityOnHand,
		QuantityAvailable: p.PredictedStock,
		QuantityReserved:  p.QuantityReserved,
		ReorderPoint:      p.ReorderPoint,
		OptimalStockLevel: p.OptimalStockLevel,
		AverageDailyUsage: p.AverageDailyUsage,
		StockStatus:       p.StockStatus,
		Category:          p.Category,
		DayOfWeek:         p.DayOfWeek,
		IsWeekend:         p.IsWeekend,
	}
}

// CacheRowFromSnapshot is the inverse mapping for persisting a synthetic
// day.
func CacheRowFromSnapshot(s *types.InventorySnapshot) *types.StockPrediction {
	return &types.StockPrediction{
		ProductID:         s.ProductID,
		PredictionDate:    s.SnapshotDate,
		PredictedStock:    s.QuantityAvailable,
		QuantityOnHand:    s.QuantityOnHand,
		QuantityReserved:  s.QuantityReserved,
		ReorderPoint:      s.ReorderPoint,
		OptimalStockLevel: s.OptimalStockLevel,
		AverageDailyUsage: s.AverageDailyUsage,
		StockStatus:       s.StockStatus,
		DayOfWeek:         s.DayOfWeek,
		IsWeekend:         s.IsWeekend,
		Category:          s.Category,
	}
}
