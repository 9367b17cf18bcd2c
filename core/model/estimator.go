// Package model defines the estimator interfaces shared by every model in
// mlwiz, plus the fitted-state bookkeeping and input validation they reuse.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は n×1 の予測値を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Model は教師あり学習モデルの基本インターフェース。
// AutoMLの候補モデルはこのインターフェースだけを通して扱われる。
type Model interface {
	Fitter
	Predictor
}

// Scorer はデフォルトの評価指標を返せるモデル。
// 回帰モデルは R²、分類モデルは正解率を返す。
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Regressor は回帰モデル
type Regressor interface {
	Model
	Scorer
}

// Classifier は分類モデル。クラスラベルは 0..k-1 に符号化された整数。
type Classifier interface {
	Model
	Scorer

	// PredictProba は n×k のクラス確率行列を返す
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に観測したクラスラベルを昇順で返す
	Classes() []int
}

// ParamsGetter はハイパーパラメータを sklearn の get_params 形式で返す
type ParamsGetter interface {
	GetParams() map[string]interface{}
}

// ParamsSetter はハイパーパラメータを更新する
type ParamsSetter interface {
	SetParams(params map[string]interface{}) error
}
