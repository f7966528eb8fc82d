package lifecycle

import (
	"fmt"
	"sort"

	"github.com/stockcast/stockcast-backend/internal/forecast"
	"github.com/stockcast/stockcast-backend/internal/model"
	"github.com/stockcast/stockcast-backend/internal/types"
)

// TrainingDataError aborts a retrain run before anything is trained.
// Production is left untouched when it is returned.
type TrainingDataError struct {
	Reason string
}

func (e *TrainingDataError) Error() string {
	return fmt.Sprintf("training data unusable: %s", e.Reason)
}

// Sequence is one supervised sample: a scaled feature window and the scaled
// next-day target.
type Sequence struct {
	Window [][]float64
	Target float64
}

// SplitRows partitions time-sorted rows by position into train/val/test.
// The split is positional, never random: shuffling would leak future days
// into training.
func SplitRows(rows []*types.InventorySnapshot, trainRatio, valRatio float64) (train, val, test []*types.InventorySnapshot) {
	n := len(rows)
	trainEnd := int(float64(n) * trainRatio)
	valEnd := trainEnd + int(float64(n)*valRatio)
	if trainEnd > n {
		trainEnd = n
	}
	if valEnd > n {
		valEnd = n
	}
	return rows[:trainEnd], rows[trainEnd:valEnd], rows[valEnd:]
}

// SortRows orders rows by product then date, the ordering every split and
// sequence build assumes.
func SortRows(rows []*types.InventorySnapshot) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProductID != rows[j].ProductID {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].SnapshotDate.Before(rows[j].SnapshotDate)
	})
}

// BuildSequences scales rows with the fitted scaler and slides a window of
// forecast.NSteps per product. Windows never cross product boundaries.
func BuildSequences(rows []*types.InventorySnapshot, scaler *model.StandardScaler) ([]Sequence, error) {
	byProduct := make(map[string][]*types.InventorySnapshot)
	var order []string
	for _, row := range rows {
		if _, ok := byProduct[row.ProductID]; !ok {
			order = append(order, row.ProductID)
		}
		byProduct[row.ProductID] = append(byProduct[row.ProductID], row)
	}

	targetIdx := scaler.ColumnIndex(forecast.TargetColumn)
	if targetIdx < 0 {
		return nil, &TrainingDataError{Reason: fmt.Sprintf("scaler has no %q column", forecast.TargetColumn)}
	}

	var out []Sequence
	for _, pid := range order {
		group := byProduct[pid]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].SnapshotDate.Before(group[j].SnapshotDate)
		})

		scaled := make([][]float64, len(group))
		for i, s := range group {
			row, err := scaler.TransformRow(forecast.ScalerRow(s))
			if err != nil {
				return nil, err
			}
			scaled[i] = row
		}

		for i := forecast.NSteps; i < len(group); i++ {
			window := make([][]float64, forecast.NSteps)
			for j := 0; j < forecast.NSteps; j++ {
				window[j] = scaled[i-forecast.NSteps+j][:len(forecast.FeatureColumns)]
			}
			out = append(out, Sequence{Window: window, Target: scaled[i][targetIdx]})
		}
	}
	return out, nil
}
