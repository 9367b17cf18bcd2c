package automl

import (
	"time"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// ErrNoSuccessfulCandidate is returned by SelectBest when every candidate failed.
var ErrNoSuccessfulCandidate = errors.New("no candidate model was evaluated successfully")

// Entry is the outcome of one candidate. Err is non-nil when the candidate
// failed, in which case Score is meaningless.
type Entry struct {
	Name     string
	Score    float64
	Err      error
	Duration time.Duration
}

// OK reports whether the candidate succeeded.
func (e Entry) OK() bool { return e.Err == nil }

// Result holds one Entry per candidate in registry order.
type Result struct {
	ProblemType ProblemType
	Metric      string
	entries     []Entry
}

func newResult(pt ProblemType, entries []Entry) *Result {
	return &Result{ProblemType: pt, Metric: pt.Metric(), entries: entries}
}

// Entries returns a copy of all entries in registry order.
func (r *Result) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Scores maps candidate name to score for the successful candidates.
func (r *Result) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.entries))
	for _, e := range r.entries {
		if e.OK() {
			out[e.Name] = e.Score
		}
	}
	return out
}

// Get returns the entry for name.
func (r *Result) Get(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Failed returns the entries that carry an error.
func (r *Result) Failed() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if !e.OK() {
			out = append(out, e)
		}
	}
	return out
}

// SelectBest returns the name of the best successful candidate: lowest
// score for Regression (MSE), highest for Classification (accuracy). Ties
// go to the candidate that comes first in registry order.
func SelectBest(r *Result) (string, error) {
	if r == nil {
		return "", ErrNoSuccessfulCandidate
	}
	best := -1
	for i, e := range r.entries {
		if !e.OK() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cur := r.entries[best].Score
		if (r.ProblemType == Regression && e.Score < cur) ||
			(r.ProblemType == Classification && e.Score > cur) {
			best = i
		}
	}
	if best < 0 {
		return "", ErrNoSuccessfulCandidate
	}
	return r.entries[best].Name, nil
}

// NewResult builds a Result from entries listed in registry order.
func NewResult(pt ProblemType, entries []Entry) *Result {
	return newResult(pt, append([]Entry(nil), entries...))
}
