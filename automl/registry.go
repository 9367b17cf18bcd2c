package automl

import (
	"github.com/YuminosukeSato/mlwiz/core/model"
	"github.com/YuminosukeSato/mlwiz/sklearn/ensemble"
	"github.com/YuminosukeSato/mlwiz/sklearn/linear_model"
)

// Candidate is a named factory for a fresh, unfitted estimator.
type Candidate struct {
	Name string
	New  func() model.Model
}

// Registry lists the candidates tried for each problem type, in the order
// they are evaluated and reported.
type Registry map[ProblemType][]Candidate

// Candidates returns a copy of the candidates for pt.
func (r Registry) Candidates(pt ProblemType) []Candidate {
	return append([]Candidate(nil), r[pt]...)
}

// ModelSettings are the hyperparameters of the built-in candidates.
type ModelSettings struct {
	ForestEstimators int
	LogisticMaxIter  int
	RandomState      int64
}

// DefaultModelSettings matches scikit-learn defaults, with max_iter raised
// to 1000 for logistic regression.
func DefaultModelSettings() ModelSettings {
	return ModelSettings{
		ForestEstimators: 100,
		LogisticMaxIter:  1000,
		RandomState:      42,
	}
}

// NewRegistry returns the built-in candidates:
// random forest and logistic regression for classification, random forest
// and linear regression for regression.
func NewRegistry(s ModelSettings) Registry {
	return Registry{
		Classification: {
			{
				Name: "Random Forest Classifier",
				New: func() model.Model {
					return ensemble.NewRandomForestClassifier(
						ensemble.WithNEstimators(s.ForestEstimators),
						ensemble.WithRandomState(s.RandomState),
					)
				},
			},
			{
				Name: "Logistic Regression",
				New: func() model.Model {
					return linear_model.NewLogisticRegression(linear_model.WithLRMaxIter(s.LogisticMaxIter))
				},
			},
		},
		Regression: {
			{
				Name: "Random Forest Regressor",
				New: func() model.Model {
					return ensemble.NewRandomForestRegressor(
						ensemble.WithNEstimators(s.ForestEstimators),
						ensemble.WithRandomState(s.RandomState),
					)
				},
			},
			{
				Name: "Linear Regression",
				New: func() model.Model {
					return linear_model.NewLinearRegression()
				},
			},
		},
	}
}

// DefaultRegistry is NewRegistry(DefaultModelSettings()).
func DefaultRegistry() Registry {
	return NewRegistry(DefaultModelSettings())
}
