// Package linear_model provides the linear estimators used as AutoML
// candidates: ordinary least squares regression and logistic regression.
package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/metrics"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// LinearRegression is ordinary least squares regression, scikit-learn's
// LinearRegression. Coefficients are the minimum-norm least squares solution
// obtained from an SVD, so collinear or rank-deficient designs still fit.
type LinearRegression struct {
	state *model.StateManager

	// Hyperparameters
	fitIntercept bool
	positive     bool

	// Learned parameters
	coef_      []float64
	intercept_ float64
	rank_      int
}

// rankTolerance は最大特異値に対する相対的な閾値。これ以下の特異値はゼロとみなす。
const rankTolerance = 1e-10

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithPositive は係数の正制約を設定（負の係数は 0 に切り詰める）
func WithPositive(positive bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.positive = positive
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Name implements model.Named.
func (lr *LinearRegression) Name() string { return "LinearRegression" }

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckFitInput("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.state.Reset()

	// 切片ありの場合は X と y を中心化してから解く（scikit-learn と同じ）
	xMean := make([]float64, cols)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(rows)
		}
		for i := 0; i < rows; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(rows)
	}

	Xc := mat.NewDense(rows, cols, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := mat.NewDense(rows, 1, nil)
	yc.Apply(func(i, j int, v float64) float64 { return v - yMean }, y)

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}

	lr.rank_ = svd.Rank(rankTolerance)

	lr.coef_ = make([]float64, cols)
	if lr.rank_ > 0 {
		var beta mat.Dense
		svd.SolveTo(&beta, yc, lr.rank_)
		for j := 0; j < cols; j++ {
			lr.coef_[j] = beta.At(j, 0)
		}
	}

	if lr.positive {
		for j := range lr.coef_ {
			if lr.coef_[j] < 0 {
				lr.coef_[j] = 0
			}
		}
	}

	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = yMean
		for j := 0; j < cols; j++ {
			lr.intercept_ -= xMean[j] * lr.coef_[j]
		}
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	if err := lr.state.RequireFeatures("LinearRegression.Predict", X); err != nil {
		return nil, err
	}

	rows, cols := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred := lr.intercept_
		for j := 0; j < cols; j++ {
			pred += X.At(i, j) * lr.coef_[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, predictions)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	coef := make([]float64, len(lr.coef_))
	copy(coef, lr.coef_)
	return coef
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// Rank は中心化した計画行列のランクを返す
func (lr *LinearRegression) Rank() int {
	return lr.rank_
}

// GetParams returns the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"positive":      lr.positive,
	}
}

// SetParams sets the model's hyperparameters (scikit-learn compatible)
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		v, ok := value.(bool)
		if !ok {
			return errors.NewValidationError(key, "must be a bool", value)
		}
		switch key {
		case "fit_intercept":
			lr.fitIntercept = v
		case "positive":
			lr.positive = v
		default:
			return errors.NewValidationError(key, "unknown parameter for LinearRegression", value)
		}
	}
	return nil
}

var _ model.Regressor = (*LinearRegression)(nil)
