package model

import (
	"fmt"
	"math"
)

// StandardScaler maps each column to zero mean and unit variance. It is
// fitted once at training time and reused verbatim at inference; refitting
// between the two would silently change what one standard deviation means
// and invalidate the paired model.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// FitScaler computes per-column mean/std over rows. Columns with zero
// variance get std 1 so transforms stay defined.
func FitScaler(columns []string, rows [][]float64) (*StandardScaler, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("scaler: no columns")
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("scaler: no rows")
	}
	n := len(columns)
	mean := make([]float64, n)
	std := make([]float64, n)

	for _, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("scaler: row width %d, want %d", len(row), n)
		}
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(rows))
	}
	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(rows)))
		if std[j] == 0 {
			std[j] = 1
		}
	}
	return &StandardScaler{Columns: append([]string(nil), columns...), Mean: mean, Std: std}, nil
}

func (s *StandardScaler) NumColumns() int { return len(s.Columns) }

// ColumnIndex returns the position of name, or -1.
func (s *StandardScaler) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// TransformRow scales one row in place-order. The input is not mutated.
func (s *StandardScaler) TransformRow(row []float64) ([]float64, error) {
	if len(row) != len(s.Columns) {
		return nil, fmt.Errorf("scaler: row width %d, want %d", len(row), len(s.Columns))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformRows scales a matrix row by row.
func (s *StandardScaler) TransformRows(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled, err := s.TransformRow(row)
		if err != nil {
			return nil, err
		}
		out[i] = scaled
	}
	return out, nil
}

// InverseColumn maps a scaled value for one column back into real units.
func (s *StandardScaler) InverseColumn(col int, v float64) (float64, error) {
	if col < 0 || col >= len(s.Columns) {
		return 0, fmt.Errorf("scaler: column %d out of range", col)
	}
	return v*s.Std[col] + s.Mean[col], nil
}
