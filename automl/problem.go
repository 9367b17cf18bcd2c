// Package automl decides whether a target column is a classification or a
// regression problem, trains the baseline candidate models for it and picks
// the best one.
package automl

import (
	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// ProblemType is the kind of supervised problem a target column poses.
type ProblemType int

const (
	// Classification targets are categorical or have few distinct values.
	Classification ProblemType = iota
	// Regression targets are numeric with many distinct values.
	Regression
)

func (p ProblemType) String() string {
	if p == Classification {
		return "Classification"
	}
	return "Regression"
}

// Metric returns the name of the score used for this problem type.
func (p ProblemType) Metric() string {
	if p == Classification {
		return "accuracy"
	}
	return "mse"
}

// DefaultClassificationThreshold is the distinct-value count below which a
// numeric target is treated as class labels.
const DefaultClassificationThreshold = 20

type classifyOptions struct {
	threshold int
}

// ClassifyOption tunes ClassifyProblem.
type ClassifyOption func(*classifyOptions)

// WithClassificationThreshold overrides DefaultClassificationThreshold.
func WithClassificationThreshold(n int) ClassifyOption {
	return func(o *classifyOptions) { o.threshold = n }
}

// ClassifyProblem inspects the target column: categorical columns, and
// numeric columns with fewer distinct values than the threshold, are
// Classification; everything else is Regression.
func ClassifyProblem(ds *dataset.Dataset, target string, opts ...ClassifyOption) (ProblemType, error) {
	o := classifyOptions{threshold: DefaultClassificationThreshold}
	for _, opt := range opts {
		opt(&o)
	}
	if o.threshold < 1 {
		return 0, errors.NewValidationError("classification_threshold", "must be >= 1", o.threshold)
	}

	col, err := ds.Column(target)
	if err != nil {
		return 0, err
	}
	if col.Len() == 0 {
		return 0, errors.Wrapf(errors.ErrEmptyDataset, "target %q has no rows", target)
	}
	if col.Kind == dataset.Categorical {
		return Classification, nil
	}
	if col.NumUnique() < o.threshold {
		return Classification, nil
	}
	return Regression, nil
}
