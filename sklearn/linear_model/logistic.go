package linear_model

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/metrics"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/preprocessing"
)

// LogisticRegression implements L2-regularised logistic regression, a
// counterpart of scikit-learn's LogisticRegression with the lbfgs solver.
// Two classes use the sigmoid model; more classes use the multinomial
// (softmax) model. Features are standardised internally before optimisation.
//
// Class labels must be the integer codes 0..k-1 produced by
// preprocessing.LabelEncoder (any integers are accepted; they are mapped to
// positions in Classes()).
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "l2" or "none"
	C            float64 // Inverse regularization strength
	fitIntercept bool
	maxIter      int
	tol          float64

	// Model parameters (in the standardised feature space)
	scaler     *preprocessing.StandardScaler
	coef_      [][]float64 // 1 x n_features (binary) or n_classes x n_features
	intercept_ []float64
	classes_   []int
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type ("l2" or "none")
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of solver iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the gradient tolerance for stopping
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// Name implements model.Named.
func (lr *LogisticRegression) Name() string { return "LogisticRegression" }

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validateParams(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckFitInput("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.state.Reset()

	labels, classes := encodeClasses(y)
	if len(classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			fmt.Sprintf("this solver needs samples of at least 2 classes in the data, but the data contains only one class: %d", classes[0]))
	}
	lr.classes_ = classes

	lr.scaler = preprocessing.NewStandardScalerDefault()
	Xs, err := lr.scaler.FitTransform(X)
	if err != nil {
		return err
	}

	nRows := 1 // binary: a single weight vector
	if len(classes) > 2 {
		nRows = len(classes)
	}
	obj := &logisticObjective{
		X:            Xs.(*mat.Dense),
		labels:       labels,
		nRows:        nRows,
		nFeatures:    nFeatures,
		fitIntercept: lr.fitIntercept,
	}
	if lr.penalty == "l2" {
		// scikit-learn の目的関数 C·Σloss + ½‖w‖² をサンプル数で割った形
		obj.alpha = 1 / (lr.C * float64(nSamples))
	}

	w, iters, err := lr.minimize(obj)
	if err != nil {
		return err
	}

	lr.coef_ = make([][]float64, nRows)
	lr.intercept_ = make([]float64, nRows)
	stride := nFeatures + 1
	for k := 0; k < nRows; k++ {
		lr.coef_[k] = append([]float64(nil), w[k*stride:k*stride+nFeatures]...)
		lr.intercept_[k] = w[k*stride+nFeatures]
	}
	lr.nIter_ = iters

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	return nil
}

func (lr *LogisticRegression) validateParams() error {
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "must be 'l2' or 'none'", lr.penalty)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	return nil
}

// minimize runs L-BFGS and falls back to the best point found when the line
// search gives up early. Hitting max_iter only raises a ConvergenceWarning.
func (lr *LogisticRegression) minimize(obj *logisticObjective) ([]float64, int, error) {
	x0 := make([]float64, obj.nRows*(obj.nFeatures+1))
	problem := optimize.Problem{
		Func: obj.loss,
		Grad: obj.grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 50,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "optimization failed", err)
	}
	if cerr := errors.CheckMatrix("LogisticRegression.Fit", mat.NewVecDense(len(result.X), result.X), len(result.X), 1, result.MajorIterations); cerr != nil {
		return nil, result.MajorIterations, cerr
	}
	if cerr := errors.CheckScalar("LogisticRegression.loss", result.F, result.MajorIterations); cerr != nil {
		return nil, result.MajorIterations, cerr
	}
	if err != nil || result.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", result.MajorIterations,
			"increase the number of iterations (max_iter) or scale the data"))
	}
	return result.X, result.MajorIterations, nil
}

// Predict returns the most probable class for each row.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.predictProba("Predict", X)
	if err != nil {
		return nil, err
	}

	rows, k := proba.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if proba.At(i, c) > proba.At(i, best) {
				best = c
			}
		}
		predictions.Set(i, 0, float64(lr.classes_[best]))
	}
	return predictions, nil
}

// PredictProba returns an n×k matrix of class probabilities; columns follow Classes().
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return lr.predictProba("PredictProba", X)
}

func (lr *LogisticRegression) predictProba(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return nil, err
	}
	if err := lr.state.RequireFeatures("LogisticRegression."+method, X); err != nil {
		return nil, err
	}
	Xs, err := lr.scaler.Transform(X)
	if err != nil {
		return nil, err
	}

	rows, _ := Xs.Dims()
	k := len(lr.classes_)
	probas := mat.NewDense(rows, k, nil)
	scores := make([]float64, len(lr.coef_))
	for i := 0; i < rows; i++ {
		row := mat.Row(nil, i, Xs)
		for c := range lr.coef_ {
			scores[c] = lr.intercept_[c] + dot(lr.coef_[c], row)
		}
		if k == 2 {
			p1 := sigmoid(scores[0])
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
			continue
		}
		lse := errors.LogSumExp(scores)
		for c := 0; c < k; c++ {
			probas.Set(i, c, math.Exp(scores[c]-lse))
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, predictions)
}

// Classes returns the class labels seen during Fit, ascending.
func (lr *LogisticRegression) Classes() []int {
	return append([]int(nil), lr.classes_...)
}

// NIter returns the number of L-BFGS iterations used by the last Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"solver":        "lbfgs",
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			lr.penalty = v
		case "C":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.C = v
		case "fit_intercept":
			v, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a bool", value)
			}
			lr.fitIntercept = v
		case "max_iter":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			lr.maxIter = v
		case "tol":
			v, ok := toFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.tol = v
		case "solver":
			if value != "lbfgs" {
				return errors.NewValidationError(key, "only 'lbfgs' is supported", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter for LogisticRegression", value)
		}
	}
	return lr.validateParams()
}

// logisticObjective is the mean cross-entropy plus an L2 term. Parameters
// are laid out row by row as [w_0 .. w_{p-1}, b] for each of nRows rows.
type logisticObjective struct {
	X            *mat.Dense
	labels       []int // position in classes_
	nRows        int
	nFeatures    int
	fitIntercept bool
	alpha        float64
}

func (o *logisticObjective) scores(w []float64, row []float64, out []float64) {
	stride := o.nFeatures + 1
	for k := 0; k < o.nRows; k++ {
		out[k] = dot(w[k*stride:k*stride+o.nFeatures], row)
		if o.fitIntercept {
			out[k] += w[k*stride+o.nFeatures]
		}
	}
}

func (o *logisticObjective) loss(w []float64) float64 {
	n, _ := o.X.Dims()
	z := make([]float64, o.nRows)
	var total float64
	for i := 0; i < n; i++ {
		o.scores(w, o.X.RawRowView(i), z)
		if o.nRows == 1 {
			// log(1+exp(z)) - y·z
			total += softplus(z[0]) - float64(o.labels[i])*z[0]
			continue
		}
		total += errors.LogSumExp(z) - z[o.labels[i]]
	}
	return total/float64(n) + 0.5*o.alpha*o.weightNorm(w)
}

func (o *logisticObjective) grad(g, w []float64) {
	for i := range g {
		g[i] = 0
	}
	n, _ := o.X.Dims()
	stride := o.nFeatures + 1
	z := make([]float64, o.nRows)
	for i := 0; i < n; i++ {
		row := o.X.RawRowView(i)
		o.scores(w, row, z)

		if o.nRows == 1 {
			z[0] = sigmoid(z[0]) - float64(o.labels[i])
		} else {
			lse := errors.LogSumExp(z)
			for k := range z {
				z[k] = math.Exp(z[k] - lse)
			}
			z[o.labels[i]] -= 1
		}

		for k := 0; k < o.nRows; k++ {
			r := z[k] / float64(n)
			base := k * stride
			for j, v := range row {
				g[base+j] += r * v
			}
			if o.fitIntercept {
				g[base+o.nFeatures] += r
			}
		}
	}

	for k := 0; k < o.nRows; k++ {
		base := k * stride
		for j := 0; j < o.nFeatures; j++ {
			g[base+j] += o.alpha * w[base+j]
		}
	}
}

func (o *logisticObjective) weightNorm(w []float64) float64 {
	stride := o.nFeatures + 1
	var s float64
	for k := 0; k < o.nRows; k++ {
		for j := 0; j < o.nFeatures; j++ {
			v := w[k*stride+j]
			s += v * v
		}
	}
	return s
}

// encodeClasses maps the labels in y to positions in the sorted class list.
func encodeClasses(y mat.Matrix) ([]int, []int) {
	rows, _ := y.Dims()
	seen := make(map[int]struct{})
	raw := make([]int, rows)
	for i := 0; i < rows; i++ {
		raw[i] = int(y.At(i, 0))
		seen[raw[i]] = struct{}{}
	}
	classes := make([]int, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
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

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := errors.StabilizeExp(z)
	return e / (1 + e)
}

func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

var _ model.Classifier = (*LogisticRegression)(nil)
