// Package ensemble provides bagged ensembles of decision trees.
package ensemble

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/core/parallel"
	"github.com/YuminosukeSato/mlwiz/metrics"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/sklearn/tree"
)

// forestParams はランダムフォレスト共通のハイパーパラメータ
type forestParams struct {
	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 はデフォルト（分類: sqrt(p), 回帰: p）
	bootstrap       bool
	randomState     int64
	nJobs           int // 0 以下は CPU コア数
}

// Option configures a RandomForestClassifier or RandomForestRegressor.
type Option func(*forestParams)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option { return func(p *forestParams) { p.nEstimators = n } }

// WithMaxDepth limits the depth of every tree; 0 means unlimited.
func WithMaxDepth(d int) Option { return func(p *forestParams) { p.maxDepth = d } }

// WithMinSamplesSplit sets min_samples_split on every tree.
func WithMinSamplesSplit(n int) Option { return func(p *forestParams) { p.minSamplesSplit = n } }

// WithMinSamplesLeaf sets min_samples_leaf on every tree.
func WithMinSamplesLeaf(n int) Option { return func(p *forestParams) { p.minSamplesLeaf = n } }

// WithMaxFeatures sets the number of features drawn at each split.
func WithMaxFeatures(n int) Option { return func(p *forestParams) { p.maxFeatures = n } }

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(b bool) Option { return func(p *forestParams) { p.bootstrap = b } }

// WithRandomState seeds the forest. Tree i uses seed+i.
func WithRandomState(seed int64) Option { return func(p *forestParams) { p.randomState = seed } }

// WithNJobs limits how many trees are grown concurrently.
func WithNJobs(n int) Option { return func(p *forestParams) { p.nJobs = n } }

func newForestParams(opts []Option) forestParams {
	p := forestParams{
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *forestParams) validate() error {
	switch {
	case p.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.nEstimators)
	case p.maxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.maxDepth)
	case p.minSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.minSamplesSplit)
	case p.minSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.minSamplesLeaf)
	case p.maxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", p.maxFeatures)
	}
	return nil
}

func (p *forestParams) get() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.nEstimators,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"bootstrap":         p.bootstrap,
		"random_state":      p.randomState,
		"n_jobs":            p.nJobs,
	}
}

func (p *forestParams) set(modelName string, values map[string]interface{}) error {
	for key, value := range values {
		if key == "bootstrap" {
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			p.bootstrap = v
			continue
		}
		v, ok := toInt(value)
		if !ok {
			return errors.NewValidationError(key, "must be an integer", value)
		}
		switch key {
		case "n_estimators":
			p.nEstimators = int(v)
		case "max_depth":
			p.maxDepth = int(v)
		case "min_samples_split":
			p.minSamplesSplit = int(v)
		case "min_samples_leaf":
			p.minSamplesLeaf = int(v)
		case "max_features":
			p.maxFeatures = int(v)
		case "random_state":
			p.randomState = v
		case "n_jobs":
			p.nJobs = int(v)
		default:
			return errors.NewValidationError(key, "unknown parameter for "+modelName, value)
		}
	}
	return p.validate()
}

func (p *forestParams) treeOptions(idx, maxFeatures int) []tree.Option {
	return []tree.Option{
		tree.WithMaxDepth(p.maxDepth),
		tree.WithMinSamplesSplit(p.minSamplesSplit),
		tree.WithMinSamplesLeaf(p.minSamplesLeaf),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(p.randomState + int64(idx)),
	}
}

// sample returns the rows of X and y used to grow tree idx.
func (p *forestParams) sample(idx int, X, y mat.Matrix) (*mat.Dense, *mat.Dense) {
	rows, cols := X.Dims()
	if !p.bootstrap {
		return mat.DenseCopyOf(X), mat.DenseCopyOf(y)
	}
	rng := rand.New(rand.NewSource(p.randomState + int64(idx)))
	Xs := mat.NewDense(rows, cols, nil)
	ys := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		r := rng.Intn(rows)
		for j := 0; j < cols; j++ {
			Xs.Set(i, j, X.At(r, j))
		}
		ys.Set(i, 0, y.At(r, 0))
	}
	return Xs, ys
}

// grow fits nEstimators trees concurrently and reports the first failure.
func (p *forestParams) grow(fit func(idx int) error) error {
	errs := make([]error, p.nEstimators)
	parallel.ForEach(p.nEstimators, p.nJobs, func(i int) {
		errs[i] = errors.SafeExecute("RandomForest.fitTree", func() error {
			return fit(i)
		})
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// predictParallelThreshold 以下の本数では木の予測を逐次に行う
const predictParallelThreshold = 16

// predictTrees collects the prediction of every tree. The results keep the
// tree order, and the first failing tree's error is returned.
func predictTrees(n int, predict func(i int) (mat.Matrix, error)) ([]mat.Matrix, error) {
	out := make([]mat.Matrix, n)
	errs := make([]error, n)
	parallel.ParallelizeWithThreshold(n, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			out[i], errs[i] = predict(i)
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func meanImportances(all [][]float64) []float64 {
	if len(all) == 0 {
		return nil
	}
	out := make([]float64, len(all[0]))
	for _, imp := range all {
		for j, v := range imp {
			out[j] += v
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	for j := range out {
		out[j] = errors.SafeDivide(out[j], total)
	}
	return out
}

// RandomForestClassifier averages the class probabilities of bootstrapped
// decision trees.
type RandomForestClassifier struct {
	forestParams
	state *model.StateManager

	estimators_ []*tree.DecisionTreeClassifier
	classes_    []int
}

// NewRandomForestClassifier creates a forest of 100 gini trees using
// sqrt(n_features) features per split.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	return &RandomForestClassifier{
		forestParams: newForestParams(opts),
		state:        model.NewStateManager(),
	}
}

// Name implements model.Named.
func (rf *RandomForestClassifier) Name() string { return "RandomForestClassifier" }

// Fit grows the forest.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	rf.state.Reset()

	// 各木がブートストラップで一部のクラスしか見なくても列を揃えられるよう、
	// ラベルは 0..K-1 に符号化してから渡す
	encoded, classes := encodeLabels(y)

	maxFeatures := rf.maxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(cols)))))
	}

	trees := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	err = rf.grow(func(idx int) error {
		Xs, ys := rf.sample(idx, X, encoded)
		t := tree.NewDecisionTreeClassifier(rf.treeOptions(idx, maxFeatures)...)
		if err := t.Fit(Xs, ys); err != nil {
			return err
		}
		trees[idx] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators_ = trees
	rf.classes_ = classes
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// PredictProba returns the mean class probabilities over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return rf.predictProba("PredictProba", X)
}

func (rf *RandomForestClassifier) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return nil, err
	}
	if err := rf.state.RequireFeatures("RandomForestClassifier."+method, X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	probas, err := predictTrees(len(rf.estimators_), func(i int) (mat.Matrix, error) {
		return rf.estimators_[i].PredictProba(X)
	})
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, len(rf.classes_), nil)
	for idx, t := range rf.estimators_ {
		proba := probas[idx]
		for k, c := range t.Classes() {
			for i := 0; i < rows; i++ {
				out.Set(i, c, out.At(i, c)+proba.At(i, k))
			}
		}
	}
	out.Scale(1/float64(len(rf.estimators_)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	rows, cols := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if proba.At(i, k) > proba.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, float64(rf.classes_[best]))
	}
	return out, nil
}

// Score returns the accuracy on (X, y).
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels seen in Fit.
func (rf *RandomForestClassifier) Classes() []int {
	return append([]int(nil), rf.classes_...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators_
}

// FeatureImportances returns the normalised mean importance over all trees.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	all := make([][]float64, 0, len(rf.estimators_))
	for _, t := range rf.estimators_ {
		all = append(all, t.GetFeatureImportances())
	}
	return meanImportances(all)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} { return rf.get() }

// SetParams updates hyperparameters by their scikit-learn names.
func (rf *RandomForestClassifier) SetParams(values map[string]interface{}) error {
	return rf.set("RandomForestClassifier", values)
}

// RandomForestRegressor averages the predictions of bootstrapped regression trees.
type RandomForestRegressor struct {
	forestParams
	state *model.StateManager

	estimators_ []*tree.DecisionTreeRegressor
}

// NewRandomForestRegressor creates a forest of 100 squared-error trees that
// consider every feature at each split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	return &RandomForestRegressor{
		forestParams: newForestParams(opts),
		state:        model.NewStateManager(),
	}
}

// Name implements model.Named.
func (rf *RandomForestRegressor) Name() string { return "RandomForestRegressor" }

// Fit grows the forest.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rf.state.Reset()

	maxFeatures := rf.maxFeatures
	if maxFeatures == 0 {
		maxFeatures = cols
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.nEstimators)
	err = rf.grow(func(idx int) error {
		Xs, ys := rf.sample(idx, X, y)
		t := tree.NewDecisionTreeRegressor(rf.treeOptions(idx, maxFeatures)...)
		if err := t.Fit(Xs, ys); err != nil {
			return err
		}
		trees[idx] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.estimators_ = trees
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// Predict returns the mean prediction over all trees.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := rf.state.RequireFeatures("RandomForestRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	preds, err := predictTrees(len(rf.estimators_), func(i int) (mat.Matrix, error) {
		return rf.estimators_[i].Predict(X)
	})
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	for _, pred := range preds {
		out.Add(out, pred)
	}
	out.Scale(1/float64(len(rf.estimators_)), out)
	return out, nil
}

// Score returns R² on (X, y).
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Estimators returns the fitted trees.
func (rf *RandomForestRegressor) Estimators() []*tree.DecisionTreeRegressor {
	return rf.estimators_
}

// FeatureImportances returns the normalised mean importance over all trees.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	all := make([][]float64, 0, len(rf.estimators_))
	for _, t := range rf.estimators_ {
		all = append(all, t.GetFeatureImportances())
	}
	return meanImportances(all)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} { return rf.get() }

// SetParams updates hyperparameters by their scikit-learn names.
func (rf *RandomForestRegressor) SetParams(values map[string]interface{}) error {
	return rf.set("RandomForestRegressor", values)
}

// encodeLabels maps the integer labels in y to 0..K-1 in sorted order.
func encodeLabels(y mat.Matrix) (*mat.Dense, []int) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	var classes []int
	for i := 0; i < rows; i++ {
		c := int(y.At(i, 0))
		if !seen[c] {
			seen[c] = true
			classes = append(classes, c)
		}
	}
	sort.Ints(classes)
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(pos[int(y.At(i, 0))]))
	}
	return out, classes
}

func toInt(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t == float64(int64(t)) {
			return int64(t), true
		}
	}
	return 0, false
}

var (
	_ model.Classifier = (*RandomForestClassifier)(nil)
	_ model.Regressor  = (*RandomForestRegressor)(nil)
)
