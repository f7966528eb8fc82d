package lifecycle

import (
	"errors"
	"math"
	"testing"

	"github.com/stockcast/stockcast-backend/internal/model"
)

func seqOf(vals []float64, target float64) Sequence {
	w := make([][]float64, len(vals))
	for i, v := range vals {
		w[i] = []float64{v}
	}
	return Sequence{Window: w, Target: target}
}

func constModel(dim int, value float64) *model.Regressor {
	m := model.NewRegressor(dim, 1)
	m.Bias = value
	return m
}

func TestEvaluateComputesRMSEAndMAE(t *testing.T) {
	// Model always predicts 0; targets 3 and -4 give errors 3 and 4.
	m := constModel(2, 0)
	seqs := []Sequence{
		seqOf([]float64{1, 1}, 3),
		seqOf([]float64{1, 1}, -4),
	}

	got, err := Evaluate(m, seqs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Samples != 2 {
		t.Fatalf("samples: want=2 got=%d", got.Samples)
	}
	wantRMSE := math.Sqrt((9.0 + 16.0) / 2.0)
	if math.Abs(got.RMSE-wantRMSE) > 1e-12 {
		t.Fatalf("rmse: want=%v got=%v", wantRMSE, got.RMSE)
	}
	if math.Abs(got.MAE-3.5) > 1e-12 {
		t.Fatalf("mae: want=3.5 got=%v", got.MAE)
	}
}

func TestEvaluateSkipsNaNPairs(t *testing.T) {
	m := constModel(2, 0)
	seqs := []Sequence{
		seqOf([]float64{1, 1}, 2),
		seqOf([]float64{1, 1}, math.NaN()),
	}

	got, err := Evaluate(m, seqs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.Samples != 1 {
		t.Fatalf("samples: want=1 got=%d", got.Samples)
	}
	if got.MAE != 2 {
		t.Fatalf("mae: want=2 got=%v", got.MAE)
	}
}

func TestEvaluateAllNaNFails(t *testing.T) {
	m := constModel(2, 0)
	seqs := []Sequence{seqOf([]float64{1, 1}, math.NaN())}

	_, err := Evaluate(m, seqs)
	var dataErr *TrainingDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("error type: want TrainingDataError, got %T (%v)", err, err)
	}
}

func TestCompareImprovementPercentages(t *testing.T) {
	cmp := Compare(Metrics{RMSE: 4.50, MAE: 3.00}, Metrics{RMSE: 4.10, MAE: 3.30})
	if math.Abs(cmp.RMSEImprovementPct-8.888888888888888) > 1e-9 {
		t.Fatalf("rmse improvement: got=%v", cmp.RMSEImprovementPct)
	}
	if math.Abs(cmp.MAEImprovementPct-(-10)) > 1e-9 {
		t.Fatalf("mae improvement: got=%v", cmp.MAEImprovementPct)
	}
}

func TestCompareZeroBaseline(t *testing.T) {
	cmp := Compare(Metrics{RMSE: 0, MAE: 0}, Metrics{RMSE: 1, MAE: 1})
	if cmp.RMSEImprovementPct != 0 || cmp.MAEImprovementPct != 0 {
		t.Fatalf("zero baseline should yield zero change: %+v", cmp)
	}
}

func TestConfidenceClampsToUnitInterval(t *testing.T) {
	if got := Confidence(Comparison{}); got != 0.5 {
		t.Fatalf("no change confidence: want=0.5 got=%v", got)
	}
	if got := Confidence(Comparison{RMSEImprovementPct: 500, MAEImprovementPct: 500}); got != 1 {
		t.Fatalf("upper clamp: want=1 got=%v", got)
	}
	if got := Confidence(Comparison{RMSEImprovementPct: -500, MAEImprovementPct: -500}); got != 0 {
		t.Fatalf("lower clamp: want=0 got=%v", got)
	}
	got := Confidence(Comparison{RMSEImprovementPct: 10, MAEImprovementPct: 10})
	if math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("confidence: want=0.6 got=%v", got)
	}
}
