package dataset

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// Split is a train/test partition of a Dataset.
type Split struct {
	Train *Dataset
	Test  *Dataset
}

// TrainTestSplit shuffles the rows with a permutation drawn from seed and
// puts the first ceil(testSize*n) of them in Test and the rest in Train,
// the way scikit-learn's train_test_split sizes its partitions.
func TrainTestSplit(ds *Dataset, testSize float64, seed int64) (*Split, error) {
	if testSize <= 0 || testSize >= 1 || math.IsNaN(testSize) {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	n := ds.NumRows()
	if n == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "train_test_split")
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, errors.NewValidationError("test_size",
			"leaves an empty train or test partition for the number of rows", n)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return &Split{
		Train: ds.Take(perm[nTest:]),
		Test:  ds.Take(perm[:nTest]),
	}, nil
}

// Drop returns ds without the named column.
func (ds *Dataset) Drop(name string) (*Dataset, error) {
	if _, err := ds.Column(name); err != nil {
		return nil, err
	}
	cols := make([]*Column, 0, len(ds.Columns)-1)
	for _, c := range ds.Columns {
		if c.Name != name {
			cols = append(cols, c)
		}
	}
	return &Dataset{Columns: cols}, nil
}

// FeatureMatrix returns every column except target as an n×p matrix along
// with the feature names. A categorical feature yields a
// NonNumericFeatureError; models in mlwiz only accept numeric input.
func (ds *Dataset) FeatureMatrix(target string) (*mat.Dense, []string, error) {
	features, err := ds.Drop(target)
	if err != nil {
		return nil, nil, err
	}
	n, p := features.NumRows(), features.NumCols()
	if n == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyDataset, "feature matrix")
	}
	if p == 0 {
		return nil, nil, errors.NewValidationError("features", "dataset has no feature columns besides the target", target)
	}

	X := mat.NewDense(n, p, nil)
	for j, c := range features.Columns {
		if c.Kind != Numeric {
			return nil, nil, errors.NewNonNumericFeatureError(c.Name)
		}
		for i, v := range c.Values {
			if v.Missing {
				return nil, nil, errors.NewValidationError(c.Name, "contains missing values; call Clean first", i)
			}
			X.Set(i, j, v.Num)
		}
	}
	return X, features.Names(), nil
}
