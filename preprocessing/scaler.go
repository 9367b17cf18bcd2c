// Package preprocessing は学習前の特徴量変換を提供する。
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）。分散ゼロの列は 1。
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted は Fit 済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// Fit は訓練データから列ごとの平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	if X == nil {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		mean, std := stat.PopMeanStdDev(model.Column(X, j), nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		// 標準偏差がほぼゼロの列はそのまま（ゼロ除算を避ける）
		if s.WithStd && math.Abs(std) >= 1e-8 {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	if err := s.state.RequireFeatures("StandardScaler.Transform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	if err := s.state.RequireFeatures("StandardScaler.InverseTransform", X); err != nil {
		return nil, err
	}

	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	}, X)
	return result, nil
}

var _ model.InverseTransformer = (*StandardScaler)(nil)
