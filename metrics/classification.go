package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// Accuracy は正解率（予測ラベルが一致した割合）を計算する。値は [0, 1]。
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は Predict が返す n×1 行列に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}
