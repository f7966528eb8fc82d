package model

import (
	"fmt"
	"math/rand"
)

const trainSeed = 42

// Regressor is a linear model over a flattened (steps × features) window.
// It predicts the scaled target for the day after the window. The
// forecasting side treats it as an opaque numeric function; nothing outside
// this package depends on it being linear.
type Regressor struct {
	Kind     string    `json:"kind"`
	InputDim int       `json:"input_dim"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
}

func NewRegressor(steps, features int) *Regressor {
	dim := steps * features
	return &Regressor{
		Kind:     "linear_v1",
		InputDim: dim,
		Weights:  make([]float64, dim),
	}
}

// Predict returns the scaled prediction for one window of scaled feature
// rows. The window is flattened oldest row first.
func (m *Regressor) Predict(window [][]float64) (float64, error) {
	x, err := m.flatten(window)
	if err != nil {
		return 0, err
	}
	return m.predictFlat(x), nil
}

func (m *Regressor) predictFlat(x []float64) float64 {
	sum := m.Bias
	for i, v := range x {
		sum += m.Weights[i] * v
	}
	return sum
}

func (m *Regressor) flatten(window [][]float64) ([]float64, error) {
	x := make([]float64, 0, m.InputDim)
	for _, row := range window {
		x = append(x, row...)
	}
	if len(x) != m.InputDim {
		return nil, fmt.Errorf("regressor: input dim %d, want %d", len(x), m.InputDim)
	}
	return x, nil
}

// Clone returns an independent copy. Training a clone never touches the
// original weights.
func (m *Regressor) Clone() *Regressor {
	out := &Regressor{Kind: m.Kind, InputDim: m.InputDim, Bias: m.Bias}
	out.Weights = append([]float64(nil), m.Weights...)
	return out
}

// TrainConfig controls one fine-tuning run.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	L2           float64
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Epochs <= 0 {
		c.Epochs = 10
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 128
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.01
	}
	return c
}

// Train fine-tunes the model in place with mini-batch SGD on squared error.
// windows hold scaled feature rows, targets the scaled next-day target.
// The shuffle is seeded so runs are reproducible.
func (m *Regressor) Train(windows [][][]float64, targets []float64, cfg TrainConfig) (int, error) {
	if len(windows) == 0 {
		return 0, fmt.Errorf("regressor: no training sequences")
	}
	if len(windows) != len(targets) {
		return 0, fmt.Errorf("regressor: %d windows vs %d targets", len(windows), len(targets))
	}
	cfg = cfg.withDefaults()

	xs := make([][]float64, len(windows))
	for i, w := range windows {
		x, err := m.flatten(w)
		if err != nil {
			return 0, err
		}
		xs[i] = x
	}

	rng := rand.New(rand.NewSource(trainSeed))
	order := make([]int, len(xs))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batch := order[start:end]

			gradW := make([]float64, m.InputDim)
			gradB := 0.0
			for _, idx := range batch {
				x := xs[idx]
				diff := m.predictFlat(x) - targets[idx]
				for j, v := range x {
					gradW[j] += diff * v
				}
				gradB += diff
			}

			scale := cfg.LearningRate / float64(len(batch))
			for j := range m.Weights {
				m.Weights[j] -= scale*gradW[j] + cfg.LearningRate*cfg.L2*m.Weights[j]
			}
			m.Bias -= scale * gradB
		}
	}
	return cfg.Epochs, nil
}
