package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/metrics"
)

// DecisionTreeRegressor is a CART regressor minimising squared error. Each
// leaf predicts the mean target of its training samples.
type DecisionTreeRegressor struct {
	params
	state *model.StateManager

	tree *fittedTree
}

// NewDecisionTreeRegressor creates a regressor using the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	return &DecisionTreeRegressor{
		params: newParams("squared_error", opts),
		state:  model.NewStateManager(),
	}
}

// Name implements model.Named.
func (dt *DecisionTreeRegressor) Name() string { return "DecisionTreeRegressor" }

// Fit grows the tree on X and the continuous targets in y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := dt.validate("squared_error"); err != nil {
		return err
	}
	rows, cols, err := model.CheckFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	dt.state.Reset()

	b := newBuilder(X, &squaredErrorCriterion{y: model.Column(y, 0)}, &dt.params, dt.maxFeatures)
	b.buildTree(rows)

	dt.tree = &fittedTree{nodes: b.nodes, importances: b.importances}
	dt.state.SetDimensions(cols, rows)
	dt.state.SetFitted()
	return nil
}

// Predict returns the leaf mean for each row of X.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	if err := dt.state.RequireFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		leaf := dt.tree.apply(model.Row(X, i))
		out.Set(i, 0, leaf.value[0]/float64(leaf.nSamples))
	}
	return out, nil
}

// Score returns R² on (X, y).
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// GetFeatureImportances returns the normalised variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.tree == nil {
		return nil
	}
	return append([]float64(nil), dt.tree.importances...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.tree == nil {
		return 0
	}
	return dt.tree.nLeaves()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.get()
}

// SetParams updates hyperparameters by their scikit-learn names.
func (dt *DecisionTreeRegressor) SetParams(values map[string]interface{}) error {
	if err := dt.set("DecisionTreeRegressor", values); err != nil {
		return err
	}
	return dt.validate("squared_error")
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)
