package lifecycle

import (
	"math"

	"github.com/stockcast/stockcast-backend/internal/model"
)

// Metrics are the two error measures used to compare models on the shared
// held-out partition.
type Metrics struct {
	RMSE    float64 `json:"rmse"`
	MAE     float64 `json:"mae"`
	Samples int     `json:"samples"`
}

// Comparison holds the relative change from production to candidate.
// Positive percentages are improvements.
type Comparison struct {
	RMSEImprovementPct float64 `json:"rmse_improvement_pct"`
	MAEImprovementPct  float64 `json:"mae_improvement_pct"`
}

// Evaluate runs the model over every sequence and computes RMSE and MAE
// over valid prediction/actual pairs. Pairs where either side is NaN are
// skipped, not counted as zero error.
func Evaluate(m *model.Regressor, seqs []Sequence) (Metrics, error) {
	out := Metrics{}
	sumSq := 0.0
	sumAbs := 0.0
	for _, seq := range seqs {
		pred, err := m.Predict(seq.Window)
		if err != nil {
			return out, err
		}
		if math.IsNaN(pred) || math.IsNaN(seq.Target) {
			continue
		}
		diff := pred - seq.Target
		sumSq += diff * diff
		sumAbs += math.Abs(diff)
		out.Samples++
	}
	if out.Samples == 0 {
		return out, &TrainingDataError{Reason: "no valid prediction/actual pairs in held-out partition"}
	}
	out.RMSE = math.Sqrt(sumSq / float64(out.Samples))
	out.MAE = sumAbs / float64(out.Samples)
	return out, nil
}

// Compare computes the relative change of each error measure between
// candidate and production.
func Compare(production, candidate Metrics) Comparison {
	return Comparison{
		RMSEImprovementPct: improvementPct(production.RMSE, candidate.RMSE),
		MAEImprovementPct:  improvementPct(production.MAE, candidate.MAE),
	}
}

func improvementPct(before, after float64) float64 {
	if before == 0 {
		return 0
	}
	return (before - after) / before * 100
}

// Confidence maps a comparison onto [0, 1]: 0.5 means no change, higher
// means the candidate looked better on the held-out set.
func Confidence(cmp Comparison) float64 {
	score := 0.5 + (cmp.RMSEImprovementPct+cmp.MAEImprovementPct)/200
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
