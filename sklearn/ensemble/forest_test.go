package ensemble

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// 3つのクラスタ（クラス 1, 4, 9）を決定的に生成する
func blobs(n int) (*mat.Dense, *mat.Dense) {
	centers := [][2]float64{{0, 0}, {5, 5}, {10, 0}}
	labels := []float64{1, 4, 9}
	X := mat.NewDense(n*3, 3, nil)
	y := mat.NewDense(n*3, 1, nil)
	for c := 0; c < 3; c++ {
		for i := 0; i < n; i++ {
			r := c*n + i
			X.Set(r, 0, centers[c][0]+math.Sin(float64(r))*0.8)
			X.Set(r, 1, centers[c][1]+math.Cos(float64(r*3))*0.8)
			X.Set(r, 2, math.Mod(float64(r*7), 5)) // ノイズ
			y.Set(r, 0, labels[c])
		}
	}
	return X, y
}

func TestRandomForestClassifier_FitPredict(t *testing.T) {
	X, y := blobs(20)

	rf := NewRandomForestClassifier(WithNEstimators(25), WithRandomState(42))
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Estimators(), 25)
	assert.Equal(t, []int{1, 4, 9}, rf.Classes())

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)

	proba, err := rf.PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 60, rows)
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		assert.InDelta(t, 1.0, mat.Sum(proba.(*mat.Dense).RowView(i)), 1e-9)
	}

	imp := rf.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Less(t, imp[2], imp[0]+imp[1])
}

func TestRandomForestClassifier_Deterministic(t *testing.T) {
	X, y := blobs(10)

	fit := func(jobs int) mat.Matrix {
		rf := NewRandomForestClassifier(WithNEstimators(15), WithRandomState(7), WithNJobs(jobs))
		require.NoError(t, rf.Fit(X, y))
		proba, err := rf.PredictProba(X)
		require.NoError(t, err)
		return proba
	}
	assert.True(t, mat.EqualApprox(fit(1), fit(4), 1e-12))
}

func TestRandomForestClassifier_Defaults(t *testing.T) {
	rf := NewRandomForestClassifier()
	params := rf.GetParams()
	assert.Equal(t, 100, params["n_estimators"])
	assert.Equal(t, true, params["bootstrap"])
	assert.Equal(t, 0, params["max_features"])

	require.NoError(t, rf.SetParams(map[string]interface{}{"n_estimators": 10, "max_depth": 3}))
	assert.Equal(t, 10, rf.nEstimators)
	assert.Equal(t, 3, rf.maxDepth)

	assert.Error(t, rf.SetParams(map[string]interface{}{"n_estimators": 0}))
	assert.Error(t, rf.SetParams(map[string]interface{}{"bootstrap": "yes"}))
	assert.Error(t, rf.SetParams(map[string]interface{}{"learning_rate": 0.1}))
}

func TestRandomForestClassifier_NotFitted(t *testing.T) {
	rf := NewRandomForestClassifier()
	_, err := rf.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestRandomForestRegressor_FitPredict(t *testing.T) {
	n := 80
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0 := float64(i) / 8
		x1 := math.Mod(float64(i*13), 11)
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.Set(i, 0, 3*x0+math.Sin(x0))
	}

	rf := NewRandomForestRegressor(WithNEstimators(30), WithRandomState(42))
	require.NoError(t, rf.Fit(X, y))

	score, err := rf.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.9)

	imp := rf.FeatureImportances()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])

	_, err = rf.Predict(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestRandomForestRegressor_NoBootstrapMatchesSingleTree(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 5, 5, 5})

	rf := NewRandomForestRegressor(WithNEstimators(3), WithBootstrap(false))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1, 1, 5, 5, 5}, mat.Col(nil, 0, pred), 1e-12)
}

func TestRandomForestRegressor_InvalidInput(t *testing.T) {
	rf := NewRandomForestRegressor(WithNEstimators(0))
	err := rf.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	rf = NewRandomForestRegressor()
	err = rf.Fit(mat.NewDense(2, 1, []float64{1, math.NaN()}), mat.NewDense(2, 1, []float64{1, 2}))
	assert.True(t, errors.As(err, &ve))
}

func TestGrow_ReturnsTreeErrorUnwrapped(t *testing.T) {
	cause := errors.NewValidationError("y", "bad labels", nil)
	p := forestParams{nEstimators: 4, nJobs: 2}
	err := p.grow(func(idx int) error {
		if idx == 2 {
			return cause
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, cause, err)

	var fitErr *errors.ModelFitError
	assert.False(t, errors.As(err, &fitErr))

	err = p.grow(func(idx int) error {
		if idx == 1 {
			panic("split on empty node")
		}
		return nil
	})
	require.Error(t, err)
	assert.False(t, errors.As(err, &fitErr))
}

func TestPredictTrees_KeepsTreeOrder(t *testing.T) {
	for _, n := range []int{3, predictParallelThreshold + 5} {
		preds, err := predictTrees(n, func(i int) (mat.Matrix, error) {
			return mat.NewDense(1, 1, []float64{float64(i)}), nil
		})
		require.NoError(t, err)
		require.Len(t, preds, n)
		for i, p := range preds {
			assert.Equal(t, float64(i), p.At(0, 0))
		}
	}

	_, err := predictTrees(predictParallelThreshold+1, func(i int) (mat.Matrix, error) {
		if i == 7 {
			return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
		}
		return mat.NewDense(1, 1, nil), nil
	})
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestRandomForestRegressor_PredictAveragesTrees(t *testing.T) {
	X, y := blobs(10)
	rf := NewRandomForestRegressor(WithNEstimators(predictParallelThreshold+4), WithRandomState(3))
	require.NoError(t, rf.Fit(X, y))

	pred, err := rf.Predict(X)
	require.NoError(t, err)

	rows, _ := X.Dims()
	want := make([]float64, rows)
	for _, tr := range rf.Estimators() {
		p, err := tr.Predict(X)
		require.NoError(t, err)
		for i := range want {
			want[i] += p.At(i, 0) / float64(len(rf.Estimators()))
		}
	}
	assert.InDeltaSlice(t, want, mat.Col(nil, 0, pred), 1e-9)
}

func TestMeanImportances_ZeroTotal(t *testing.T) {
	assert.Equal(t, []float64{0, 0}, meanImportances([][]float64{{0, 0}, {0, 0}}))
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, meanImportances([][]float64{{1, 1}, {0, 2}}), 1e-12)
	assert.Nil(t, meanImportances(nil))
}
