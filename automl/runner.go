package automl

import (
	"context"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/core/parallel"
	"github.com/YuminosukeSato/mlwiz/metrics"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

// Runner fits and scores every registered candidate for a problem type.
type Runner struct {
	registry Registry
	failFast bool
	parallel bool
	logger   log.Logger
	observe  func(pt ProblemType, e Entry)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRegistry replaces the default candidate registry.
func WithRegistry(r Registry) RunnerOption {
	return func(rn *Runner) { rn.registry = r }
}

// WithFailFast makes Evaluate stop at the first failing candidate and return
// its error instead of recording it and moving on.
func WithFailFast(failFast bool) RunnerOption {
	return func(rn *Runner) { rn.failFast = failFast }
}

// WithParallel fits the candidates concurrently. Entries are still reported
// in registry order.
func WithParallel(p bool) RunnerOption {
	return func(rn *Runner) { rn.parallel = p }
}

// WithLogger sets the logger used for per-candidate lines.
func WithLogger(l log.Logger) RunnerOption {
	return func(rn *Runner) { rn.logger = l }
}

// WithObserver registers a callback invoked once per finished candidate.
// It may be called from several goroutines when WithParallel is set.
func WithObserver(fn func(pt ProblemType, e Entry)) RunnerOption {
	return func(rn *Runner) { rn.observe = fn }
}

// NewRunner creates a Runner using DefaultRegistry unless overridden.
func NewRunner(opts ...RunnerOption) *Runner {
	rn := &Runner{
		registry: DefaultRegistry(),
		logger:   log.GetLoggerWithName("automl.runner"),
	}
	for _, opt := range opts {
		opt(rn)
	}
	return rn
}

// Evaluate fits each candidate for pt on (trainX, trainY), predicts testX
// and scores against testY with accuracy (Classification) or MSE
// (Regression). A failing or panicking candidate is recorded as a
// ModelFitError on its Entry and the others still run. Evaluate itself fails
// only on invalid input, a cancelled context, or, with WithFailFast, the
// first candidate failure.
func (rn *Runner) Evaluate(ctx context.Context, trainX, testX mat.Matrix, trainY, testY *mat.VecDense, pt ProblemType) (*Result, error) {
	if err := checkPartitions(trainX, testX, trainY, testY); err != nil {
		return nil, err
	}
	candidates := rn.registry.Candidates(pt)
	if len(candidates) == 0 {
		return nil, errors.NewValidationError("registry", "no candidates registered for "+pt.String(), pt)
	}

	entries := make([]Entry, len(candidates))
	if rn.parallel {
		parallel.ForEach(len(candidates), len(candidates), func(i int) {
			if ctx.Err() != nil {
				entries[i] = Entry{Name: candidates[i].Name, Err: ctx.Err()}
				return
			}
			entries[i] = rn.evaluateOne(candidates[i], trainX, testX, trainY, testY, pt)
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rn.failFast {
			for _, e := range entries {
				if !e.OK() {
					return nil, e.Err
				}
			}
		}
		return newResult(pt, entries), nil
	}

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entries[i] = rn.evaluateOne(c, trainX, testX, trainY, testY, pt)
		if rn.failFast && !entries[i].OK() {
			return nil, entries[i].Err
		}
	}
	return newResult(pt, entries), nil
}

func (rn *Runner) evaluateOne(c Candidate, trainX, testX mat.Matrix, trainY, testY *mat.VecDense, pt ProblemType) Entry {
	start := time.Now()
	var score float64

	err := errors.SafeExecute("automl."+c.Name, func() error {
		m := c.New()
		if err := m.Fit(trainX, trainY); err != nil {
			return errors.NewModelFitError(c.Name, log.OperationFit, err)
		}
		pred, err := m.Predict(testX)
		if err != nil {
			return errors.NewModelFitError(c.Name, log.OperationPredict, err)
		}
		score, err = scorePredictions(pt, testY, pred)
		if err != nil {
			return errors.NewModelFitError(c.Name, log.OperationScore, err)
		}
		return nil
	})
	var fitErr *errors.ModelFitError
	if err != nil && !errors.As(err, &fitErr) {
		// panic はここで ModelFitError に包む
		err = errors.NewModelFitError(c.Name, log.OperationFit, err)
	}

	entry := Entry{Name: c.Name, Score: score, Err: err, Duration: time.Since(start)}
	rn.logEntry(pt, entry)
	if rn.observe != nil {
		rn.observe(pt, entry)
	}
	return entry
}

func (rn *Runner) logEntry(pt ProblemType, e Entry) {
	ms := float64(e.Duration.Microseconds()) / 1000
	if !e.OK() {
		rn.logger.Warn("candidate failed",
			log.ModelNameKey, e.Name,
			log.ProblemTypeKey, pt.String(),
			log.DurationMsKey, ms,
			log.ErrorCodeKey, errors.KindOf(e.Err),
			e.Err,
		)
		return
	}
	metricKey := log.MSEKey
	if pt == Classification {
		metricKey = log.AccuracyKey
	}
	rn.logger.Info("candidate evaluated",
		log.ModelNameKey, e.Name,
		log.ProblemTypeKey, pt.String(),
		metricKey, e.Score,
		log.DurationMsKey, ms,
	)
}

func scorePredictions(pt ProblemType, yTrue *mat.VecDense, pred mat.Matrix) (float64, error) {
	r, c := pred.Dims()
	if c != 1 {
		return 0, errors.NewDimensionError("automl.score", 1, c, 1)
	}
	yPred := mat.NewVecDense(r, mat.Col(nil, 0, pred))
	if pt == Classification {
		return metrics.Accuracy(yTrue, yPred)
	}
	return metrics.MSE(yTrue, yPred)
}

func checkPartitions(trainX, testX mat.Matrix, trainY, testY *mat.VecDense) error {
	if trainX == nil || testX == nil || trainY == nil || testY == nil {
		return errors.Wrap(errors.ErrEmptyDataset, "automl.Evaluate")
	}
	trRows, trCols := trainX.Dims()
	teRows, teCols := testX.Dims()
	if trRows == 0 || teRows == 0 {
		return errors.Wrap(errors.ErrEmptyDataset, "automl.Evaluate: empty partition")
	}
	if trainY.Len() != trRows {
		return errors.NewDimensionError("automl.Evaluate.trainY", trRows, trainY.Len(), 0)
	}
	if testY.Len() != teRows {
		return errors.NewDimensionError("automl.Evaluate.testY", teRows, testY.Len(), 0)
	}
	if trCols != teCols {
		return errors.NewDimensionError("automl.Evaluate.testX", trCols, teCols, 1)
	}
	return nil
}
