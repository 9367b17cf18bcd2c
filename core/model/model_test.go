package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	assert.False(t, s.IsFitted())

	err := s.RequireFitted("LinearRegression", "Predict")
	require.Error(t, err)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	s.SetDimensions(3, 10)
	s.SetFitted()
	assert.True(t, s.IsFitted())
	assert.NoError(t, s.RequireFitted("LinearRegression", "Predict"))

	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 3, nFeatures)
	assert.Equal(t, 10, nSamples)

	assert.NoError(t, s.RequireFeatures("Predict", mat.NewDense(2, 3, nil)))
	assert.Error(t, s.RequireFeatures("Predict", mat.NewDense(2, 4, nil)))

	s.Reset()
	assert.False(t, s.IsFitted())
	nFeatures, _ = s.GetDimensions()
	assert.Zero(t, nFeatures)
}

func TestCheckFitInput(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewVecDense(3, []float64{0, 1, 0})

	n, p, err := CheckFitInput("Fit", X, y)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, p)

	_, _, err = CheckFitInput("Fit", nil, y)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, _, err = CheckFitInput("Fit", X, mat.NewVecDense(2, []float64{0, 1}))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 0, dimErr.Axis)

	_, _, err = CheckFitInput("Fit", X, mat.NewDense(3, 2, nil))
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 1, dimErr.Axis)

	bad := mat.NewDense(3, 2, []float64{1, math.NaN(), 3, 4, 5, 6})
	_, _, err = CheckFitInput("Fit", bad, y)
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestRowColumn(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, []float64{2, 5}, Column(m, 1))
	assert.Equal(t, []float64{4, 5, 6}, Row(m, 1))
}
