// Package metrics は候補モデルの評価に使う指標を提供する。
// 回帰は MSE（小さいほど良い）、分類は正解率（大きいほど良い）が既定の指標。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// checkPair は yTrue と yPred の長さを検証し、要素数を返す
func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// columnPair は n×1 の行列2つを VecDense に変換する
func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(rTrue, mat.Col(nil, 0, yTrue)), mat.NewVecDense(rPred, mat.Col(nil, 0, yPred)), nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix は Predict が返す n×1 行列に対して MSE を計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSE は平方根平均二乗誤差を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する。yTrue の分散がゼロのときはエラー。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.AtVec(i)
	}
	yMean /= float64(n)

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// R2ScoreMatrix は n×1 行列に対して R² を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return R2Score(t, p)
}
