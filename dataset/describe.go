package dataset

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// Summary is one column of DataFrame.describe().
type Summary struct {
	Column string
	Count  int
	Mean   float64
	Std    float64 // 標本標準偏差 (n-1)
	Min    float64
	Q25    float64
	Q50    float64
	Q75    float64
	Max    float64
}

// Describe summarises every numeric column, skipping missing cells.
// Columns with no values report Count 0 and NaN everywhere else.
func (ds *Dataset) Describe() []Summary {
	var out []Summary
	for _, c := range ds.NumericColumns() {
		out = append(out, summarize(c))
	}
	return out
}

func summarize(c *Column) Summary {
	var values []float64
	for _, v := range c.Values {
		if !v.Missing {
			values = append(values, v.Num)
		}
	}
	nan := math.NaN()
	s := Summary{Column: c.Name, Count: len(values), Mean: nan, Std: nan, Min: nan, Q25: nan, Q50: nan, Q75: nan, Max: nan}
	if len(values) == 0 {
		return s
	}

	d, err := stats.DescribePercentileFunc(values, false, &[]float64{25, 50, 75}, linearPercentile)
	if err != nil {
		return s
	}
	s.Mean = d.Mean
	s.Min = d.Min
	s.Max = d.Max
	// stats.Describe の Std は母標準偏差なので pandas に合わせて不偏推定量を使う
	s.Std = stat.StdDev(values, nil)
	if len(values) < 2 {
		s.Std = nan
	}
	for _, p := range d.DescriptionPercentiles {
		switch p.Percentile {
		case 25:
			s.Q25 = p.Value
		case 50:
			s.Q50 = p.Value
		case 75:
			s.Q75 = p.Value
		}
	}
	return s
}

// linearPercentile is numpy's default "linear" percentile.
func linearPercentile(input stats.Float64Data, percent float64) (float64, error) {
	if input.Len() == 0 {
		return math.NaN(), stats.ErrEmptyInput
	}
	if percent < 0 || percent > 100 {
		return math.NaN(), stats.ErrBounds
	}
	sorted := make([]float64, input.Len())
	copy(sorted, input)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * percent / 100
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1], nil
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i]), nil
}

// CorrelationMatrix holds pairwise Pearson coefficients between numeric columns.
type CorrelationMatrix struct {
	Names  []string
	Values *mat.Dense
}

// At returns the coefficient between columns i and j.
func (m *CorrelationMatrix) At(i, j int) float64 { return m.Values.At(i, j) }

// Correlation computes the Pearson correlation of every pair of numeric
// columns over the rows where both are present, like DataFrame.corr().
// Pairs involving a constant column are NaN and raise an
// UndefinedMetricWarning.
func (ds *Dataset) Correlation() *CorrelationMatrix {
	cols := ds.NumericColumns()
	p := len(cols)
	names := make([]string, p)
	for j, c := range cols {
		names[j] = c.Name
	}
	out := &CorrelationMatrix{Names: names}
	if p == 0 {
		return out
	}
	out.Values = mat.NewDense(p, p, nil)

	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			x, y := pairwiseComplete(cols[i], cols[j])
			r := math.NaN()
			if len(x) >= 2 && !constant(x) && !constant(y) {
				r = stat.Correlation(x, y, nil)
			} else if i == j && len(x) >= 2 {
				errors.Warn(errors.NewUndefinedMetricWarning("correlation",
					"constant column '"+cols[i].Name+"'", r))
			}
			if i == j && !math.IsNaN(r) {
				r = 1
			}
			out.Values.Set(i, j, r)
			out.Values.Set(j, i, r)
		}
	}
	return out
}

func pairwiseComplete(a, b *Column) ([]float64, []float64) {
	var x, y []float64
	for i := range a.Values {
		if a.Values[i].Missing || b.Values[i].Missing {
			continue
		}
		x = append(x, a.Values[i].Num)
		y = append(y, b.Values[i].Num)
	}
	return x, y
}

func constant(v []float64) bool {
	for _, f := range v[1:] {
		if f != v[0] {
			return false
		}
	}
	return true
}
