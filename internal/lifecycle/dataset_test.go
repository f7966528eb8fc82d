package lifecycle

import (
	"testing"
	"time"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/types"
)

var datasetBase = time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC)

func trainSnap(productID string, dayOffset int, qty float64) *types.InventorySnapshot {
	date := datasetBase.AddDate(0, 0, dayOffset)
	dow := forecast.DayOfWeek(date)
	return &types.InventorySnapshot{
		ProductID:         productID,
		SnapshotDate:      date,
		QuantityOnHand:    qty,
		QuantityAvailable: qty,
		QuantityReserved:  1,
		ReorderPoint:      10,
		OptimalStockLevel: 100,
		AverageDailyUsage: 3,
		StockStatus:       1,
		Category:          2,
		DayOfWeek:         dow,
		IsWeekend:         forecast.WeekendFlag(dow),
	}
}

func productRows(productID string, days int) []*types.InventorySnapshot {
	out := make([]*types.InventorySnapshot, 0, days)
	for i := 0; i < days; i++ {
		out = append(out, trainSnap(productID, i, float64(200-i)))
	}
	return out
}

func fittedScaler(t *testing.T, rows []*types.InventorySnapshot) *model.StandardScaler {
	t.Helper()
	raw := make([][]float64, len(rows))
	for i, r := range rows {
		raw[i] = forecast.ScalerRow(r)
	}
	sc, err := model.FitScaler(forecast.ScalerColumns(), raw)
	if err != nil {
		t.Fatalf("FitScaler: %v", err)
	}
	return sc
}

func TestSplitRowsIsPositional(t *testing.T) {
	rows := productRows("p1", 20)
	train, val, test := SplitRows(rows, 0.70, 0.15)

	if len(train) != 14 || len(val) != 3 || len(test) != 3 {
		t.Fatalf("split sizes: got train=%d val=%d test=%d", len(train), len(val), len(test))
	}
	// Temporal order: everything in test is after everything in train.
	if !train[len(train)-1].SnapshotDate.Before(test[0].SnapshotDate) {
		t.Fatalf("test partition not strictly after train partition")
	}
}

func TestSortRowsOrdersByProductThenDate(t *testing.T) {
	rows := []*types.InventorySnapshot{
		trainSnap("b", 1, 1),
		trainSnap("a", 2, 2),
		trainSnap("a", 0, 3),
		trainSnap("b", 0, 4),
	}
	SortRows(rows)

	if rows[0].ProductID != "a" || !rows[0].SnapshotDate.Equal(datasetBase) {
		t.Fatalf("first row: %+v", rows[0])
	}
	if rows[3].ProductID != "b" || !rows[3].SnapshotDate.Equal(datasetBase.AddDate(0, 0, 1)) {
		t.Fatalf("last row: %+v", rows[3])
	}
}

func TestBuildSequencesWindowShape(t *testing.T) {
	rows := productRows("p1", 10)
	sc := fittedScaler(t, rows)

	seqs, err := BuildSequences(rows, sc)
	if err != nil {
		t.Fatalf("BuildSequences: %v", err)
	}
	if len(seqs) != 10-forecast.NSteps {
		t.Fatalf("sequence count: want=%d got=%d", 10-forecast.NSteps, len(seqs))
	}
	for _, seq := range seqs {
		if len(seq.Window) != forecast.NSteps {
			t.Fatalf("window length: want=%d got=%d", forecast.NSteps, len(seq.Window))
		}
		for _, row := range seq.Window {
			if len(row) != len(forecast.FeatureColumns) {
				t.Fatalf("window row width: want=%d got=%d", len(forecast.FeatureColumns), len(row))
			}
		}
	}
}

func TestBuildSequencesNeverCrossProducts(t *testing.T) {
	rows := append(productRows("p1", 8), productRows("p2", 8)...)
	sc := fittedScaler(t, rows)

	seqs, err := BuildSequences(rows, sc)
	if err != nil {
		t.Fatalf("BuildSequences: %v", err)
	}
	// Each product contributes one window on its own; a boundary-crossing
	// build would produce nine.
	if len(seqs) != 2 {
		t.Fatalf("sequence count: want=2 got=%d", len(seqs))
	}
}

func TestBuildSequencesShortProductYieldsNothing(t *testing.T) {
	rows := productRows("p1", forecast.NSteps)
	sc := fittedScaler(t, rows)

	seqs, err := BuildSequences(rows, sc)
	if err != nil {
		t.Fatalf("BuildSequences: %v", err)
	}
	if len(seqs) != 0 {
		t.Fatalf("sequence count for exactly NSteps rows: want=0 got=%d", len(seqs))
	}
}
