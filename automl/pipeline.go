package automl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
	"github.com/YuminosukeSato/mlwiz/preprocessing"
)

// Report is the outcome of one Pipeline.Run.
type Report struct {
	RunID       string
	Target      string
	ProblemType ProblemType
	Features    []string
	TrainRows   int
	TestRows    int
	Result      *Result
	// Best は成功した候補がない場合は空文字列
	Best     string
	Duration time.Duration
}

// Pipeline runs the whole evaluation for one target column: drop incomplete
// rows, infer the problem type, split, encode labels, then hand the
// partitions to a Runner.
type Pipeline struct {
	runner    *Runner
	testSize  float64
	seed      int64
	threshold int
	failFast  bool
	logger    log.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRunner sets the Runner used for evaluation.
func WithRunner(r *Runner) PipelineOption {
	return func(p *Pipeline) { p.runner = r }
}

// WithTestSize sets the held-out fraction (default 0.2).
func WithTestSize(f float64) PipelineOption {
	return func(p *Pipeline) { p.testSize = f }
}

// WithSeed sets the split seed (default 42).
func WithSeed(seed int64) PipelineOption {
	return func(p *Pipeline) { p.seed = seed }
}

// WithThreshold sets the classification threshold used by ClassifyProblem.
func WithThreshold(n int) PipelineOption {
	return func(p *Pipeline) { p.threshold = n }
}

// WithPipelineFailFast aborts the run on the first candidate failure,
// including categorical features that no model can consume.
func WithPipelineFailFast(failFast bool) PipelineOption {
	return func(p *Pipeline) { p.failFast = failFast }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline with a 20% test split and seed 42.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		testSize:  0.2,
		seed:      42,
		threshold: DefaultClassificationThreshold,
		logger:    log.GetLoggerWithName("automl.pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = NewRunner(WithFailFast(p.failFast))
	}
	return p
}

// Run evaluates every candidate for target on ds.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, target string) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(log.RunIDKey, runID, log.TargetKey, target)

	cleaned := dataset.Clean(ds)
	if cleaned.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyDataset, "no complete rows after dropping missing values")
	}
	if _, err := cleaned.Column(target); err != nil {
		return nil, err
	}

	pt, err := ClassifyProblem(cleaned, target, WithClassificationThreshold(p.threshold))
	if err != nil {
		return nil, err
	}
	logger.Info("problem type identified",
		log.ProblemTypeKey, pt.String(),
		log.SamplesKey, cleaned.NumRows(),
	)

	split, err := dataset.TrainTestSplit(cleaned, p.testSize, p.seed)
	if err != nil {
		return nil, err
	}

	trainY, testY, err := p.labels(split, target, pt)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		Target:      target,
		ProblemType: pt,
		TrainRows:   split.Train.NumRows(),
		TestRows:    split.Test.NumRows(),
	}

	trainX, features, err := split.Train.FeatureMatrix(target)
	var testX *mat.Dense
	if err == nil {
		testX, _, err = split.Test.FeatureMatrix(target)
	}
	switch {
	case err == nil:
		report.Features = features
		report.Result, err = p.runner.Evaluate(ctx, trainX, testX, trainY, testY, pt)
		if err != nil {
			return nil, err
		}
	case errors.KindOf(err) == errors.KindModelFitFailure && !p.failFast:
		// 数値以外の特徴量はどの候補も学習できないので、全候補の失敗として記録する
		report.Result = p.failAll(pt, err)
	default:
		return nil, err
	}

	report.Best, err = SelectBest(report.Result)
	if err != nil && !errors.Is(err, ErrNoSuccessfulCandidate) {
		return nil, err
	}
	report.Duration = time.Since(start)

	logger.Info("evaluation finished",
		log.BestModelKey, report.Best,
		log.CandidateCount, len(report.Result.entries),
		log.DurationMsKey, float64(report.Duration.Microseconds())/1000,
	)
	return report, nil
}

func (p *Pipeline) labels(split *dataset.Split, target string, pt ProblemType) (*mat.VecDense, *mat.VecDense, error) {
	trainCol, err := split.Train.Column(target)
	if err != nil {
		return nil, nil, err
	}
	testCol, err := split.Test.Column(target)
	if err != nil {
		return nil, nil, err
	}

	if pt == Regression {
		return mat.NewVecDense(trainCol.Len(), trainCol.Floats()),
			mat.NewVecDense(testCol.Len(), testCol.Floats()), nil
	}

	// テスト側にしか現れないクラスも扱えるよう、エンコーダは両方の分割を合わせて学習する
	enc := preprocessing.NewLabelEncoder()
	all := append(trainCol.Strings(), testCol.Strings()...)
	if err := enc.Fit(all); err != nil {
		return nil, nil, err
	}
	train, err := enc.Transform(trainCol.Strings())
	if err != nil {
		return nil, nil, err
	}
	test, err := enc.Transform(testCol.Strings())
	if err != nil {
		return nil, nil, err
	}
	return mat.NewVecDense(len(train), train), mat.NewVecDense(len(test), test), nil
}

func (p *Pipeline) failAll(pt ProblemType, cause error) *Result {
	candidates := p.runner.registry.Candidates(pt)
	entries := make([]Entry, len(candidates))
	for i, c := range candidates {
		entries[i] = Entry{Name: c.Name, Err: errors.NewModelFitError(c.Name, log.OperationFit, cause)}
		p.runner.logEntry(pt, entries[i])
		if p.runner.observe != nil {
			p.runner.observe(pt, entries[i])
		}
	}
	return newResult(pt, entries)
}
