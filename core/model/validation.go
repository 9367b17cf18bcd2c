package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// CheckFitInput validates the (X, y) pair passed to Fit. y must be a single
// column with one entry per row of X, and neither may hold NaN or Inf.
func CheckFitInput(op string, X, y mat.Matrix) (nSamples, nFeatures int, err error) {
	if X == nil || y == nil {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}

	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != nSamples {
		return 0, 0, errors.NewDimensionError(op, nSamples, yRows, 0)
	}

	if err := errors.CheckMatrix(op+".X", X, nSamples, nFeatures, 0); err != nil {
		return 0, 0, errors.NewValidationError("X", "input contains NaN or infinity", "non-finite")
	}
	if err := errors.CheckMatrix(op+".y", y, yRows, 1, 0); err != nil {
		return 0, 0, errors.NewValidationError("y", "target contains NaN or infinity", "non-finite")
	}
	return nSamples, nFeatures, nil
}

// Column copies column j of m into a slice.
func Column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = m.At(i, j)
	}
	return out
}

// Row copies row i of m into a slice.
func Row(m mat.Matrix, i int) []float64 {
	_, c := m.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		out[j] = m.At(i, j)
	}
	return out
}
