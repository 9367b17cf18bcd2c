// Package tree implements CART decision trees for classification and
// regression. The random forests in sklearn/ensemble are built from them.
package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/metrics"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// params は分類木・回帰木で共通のハイパーパラメータ
type params struct {
	criterion       string
	maxDepth        int // 0 は無制限
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 は全特徴量
	randomState     int64
}

// Option configures a DecisionTreeClassifier or DecisionTreeRegressor.
type Option func(*params)

// WithCriterion sets the split criterion: "gini" or "entropy" for
// classifiers, "squared_error" for regressors.
func WithCriterion(criterion string) Option {
	return func(p *params) { p.criterion = criterion }
}

// WithMaxDepth limits the depth of the tree. The root has depth 0 and
// 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(p *params) { p.maxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(p *params) { p.minSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples each leaf must hold.
func WithMinSamplesLeaf(n int) Option {
	return func(p *params) { p.minSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are drawn at each split.
func WithMaxFeatures(n int) Option {
	return func(p *params) { p.maxFeatures = n }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed int64) Option {
	return func(p *params) { p.randomState = seed }
}

func newParams(criterion string, opts []Option) params {
	p := params{
		criterion:       criterion,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *params) validate(criteria ...string) error {
	valid := false
	for _, c := range criteria {
		if p.criterion == c {
			valid = true
			break
		}
	}
	switch {
	case !valid:
		return errors.NewValidationError("criterion", "unsupported split criterion", p.criterion)
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

func (p *params) get() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.criterion,
		"max_depth":         p.maxDepth,
		"min_samples_split": p.minSamplesSplit,
		"min_samples_leaf":  p.minSamplesLeaf,
		"max_features":      p.maxFeatures,
		"random_state":      p.randomState,
	}
}

func (p *params) set(modelName string, values map[string]interface{}) error {
	for key, value := range values {
		if key == "criterion" {
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.criterion = v
			continue
		}
		v, ok := toInt(value)
		if !ok {
			return errors.NewValidationError(key, "must be an integer", value)
		}
		switch key {
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
		default:
			return errors.NewValidationError(key, "unknown parameter for "+modelName, value)
		}
	}
	return nil
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

// DecisionTreeClassifier is a CART classifier. Class labels are the integer
// values found in y; PredictProba columns follow Classes().
type DecisionTreeClassifier struct {
	params
	state *model.StateManager

	tree      *fittedTree
	classes_  []int
	nClasses_ int
}

// NewDecisionTreeClassifier creates a classifier using the gini criterion.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	return &DecisionTreeClassifier{
		params: newParams("gini", opts),
		state:  model.NewStateManager(),
	}
}

// Name implements model.Named.
func (dt *DecisionTreeClassifier) Name() string { return "DecisionTreeClassifier" }

// Fit grows the tree on X and the class labels in y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	if err := dt.validate("gini", "entropy"); err != nil {
		return err
	}
	rows, cols, err := model.CheckFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	dt.state.Reset()

	labels, classes := encodeClasses(y)
	crit := &classCriterion{
		labels:   labels,
		nClasses: len(classes),
		entropy:  dt.criterion == "entropy",
	}
	b := newBuilder(X, crit, &dt.params, dt.maxFeatures)
	b.buildTree(rows)

	dt.tree = &fittedTree{nodes: b.nodes, importances: b.importances}
	dt.classes_ = classes
	dt.nClasses_ = len(classes)
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the majority class of the leaf each row lands in.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, float64(dt.classes_[argmax(proba.RawRowView(i))]))
	}
	return out, nil
}

// PredictProba returns the class distribution of the leaf each row lands in.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return dt.predictProba("PredictProba", X)
}

func (dt *DecisionTreeClassifier) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return nil, err
	}
	if err := dt.state.RequireFeatures("DecisionTreeClassifier."+method, X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, dt.nClasses_, nil)
	for i := 0; i < rows; i++ {
		leaf := dt.tree.apply(model.Row(X, i))
		for k, cnt := range leaf.value {
			out.Set(i, k, cnt/float64(leaf.nSamples))
		}
	}
	return out, nil
}

// Score returns the accuracy on (X, y).
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the sorted class labels seen in Fit.
func (dt *DecisionTreeClassifier) Classes() []int {
	return append([]int(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalised total impurity decrease
// contributed by each feature. All zeros when the tree is a single leaf.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return append([]float64(nil), dt.tree.importances...)
}

// GetDepth returns the depth of the fitted tree; a lone root has depth 0.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.nLeaves()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.get()
}

// SetParams updates hyperparameters by their scikit-learn names.
func (dt *DecisionTreeClassifier) SetParams(values map[string]interface{}) error {
	if err := dt.set("DecisionTreeClassifier", values); err != nil {
		return err
	}
	return dt.validate("gini", "entropy")
}

func encodeClasses(y mat.Matrix) ([]int, []int) {
	rows, _ := y.Dims()
	raw := make([]int, rows)
	seen := make(map[int]bool)
	var classes []int
	for i := 0; i < rows; i++ {
		raw[i] = int(y.At(i, 0))
		if !seen[raw[i]] {
			seen[raw[i]] = true
			classes = append(classes, raw[i])
		}
	}
	sort.Ints(classes)
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	labels := make([]int, rows)
	for i, c := range raw {
		labels[i] = pos[c]
	}
	return labels, classes
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

var _ model.Classifier = (*DecisionTreeClassifier)(nil)
