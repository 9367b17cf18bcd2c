package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// LabelEncoder はクラスラベル（文字列）を 0..k-1 の整数に変換する。
// クラスは昇順にソートされて番号が振られる（scikit-learn と同じ）。
// 数値ラベルは数値として比較されるので "10" は "9" の後になる。
type LabelEncoder struct {
	state   *model.StateManager
	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit は出現するラベルを収集する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}

	seen := make(map[string]struct{}, len(labels))
	classes := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Slice(classes, func(i, j int) bool { return labelLess(classes[i], classes[j]) })

	e.classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.state.SetDimensions(1, len(labels))
	e.state.SetFitted()
	return nil
}

// Transform はラベルを整数コードに変換する。未知のラベルはエラー。
func (e *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if err := e.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "y contains previously unseen label "+strconv.Quote(l))
		}
		out[i] = float64(code)
	}
	return out, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (e *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if err := e.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "code "+strconv.FormatFloat(c, 'g', -1, 64)+" out of range")
		}
		out[i] = e.classes[k]
	}
	return out, nil
}

// Classes は学習したクラスを符号化順で返す
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

func labelLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case errA == nil:
		return true // 数値は文字列より前
	case errB == nil:
		return false
	default:
		return a < b
	}
}
