package errors

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 勾配降下の途中で NaN や Inf が現れたときなどに返されます。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "gradient_update", "loss"）
	Values    []float64 // 問題のある値（最大10個）
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	parts := make([]string, 0, len(e.Values))
	for i, v := range e.Values {
		if i >= 5 {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprintf("%.6g", v))
	}
	return fmt.Sprintf("mlwiz: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, strings.Join(parts, ", "))
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
	})
}

// CheckScalar は単一の値が NaN/Inf でないか確認します。
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckMatrix は行列の全要素が有限であることを確認します。
func CheckMatrix(operation string, m interface{ At(int, int) float64 }, rows, cols, iteration int) error {
	var bad []float64
	for i := 0; i < rows && len(bad) < 10; i++ {
		for j := 0; j < cols && len(bad) < 10; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
			}
		}
	}
	if len(bad) > 0 {
		return NewNumericalInstabilityError(operation, bad, iteration)
	}
	return nil
}

// SafeDivide はゼロ除算を避けて割り算を行います。分母がほぼゼロなら 0 を返します。
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// StabilizeExp はオーバーフローしないよう入力をクリップしてから exp を計算します。
func StabilizeExp(value float64) float64 {
	const maxExp = 700.0
	if value > maxExp {
		return math.Exp(maxExp)
	}
	if value < -maxExp {
		return 0
	}
	return math.Exp(value)
}

// LogSumExp は log(sum(exp(values))) を数値的に安定な形で計算します。
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}

	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}
