// Package report renders datasets and evaluation results as text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/YuminosukeSato/mlwiz/automl"
	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	return t
}

func formatFloat(v float64, decimals int) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// Preview writes the first n rows of ds (5 when n <= 0).
func Preview(w io.Writer, ds *dataset.Dataset, n int) error {
	head := ds.Head(n)
	t := newTable(w, append([]string{""}, head.Names()...))
	for i := 0; i < head.NumRows(); i++ {
		t.Append(append([]string{strconv.Itoa(i)}, head.Row(i)...))
	}
	t.Render()
	// 行数と列数は表の外に一行で出す
	_, err := fmt.Fprintf(w, "%d rows x %d columns\n", ds.NumRows(), ds.NumCols())
	return err
}

// Describe writes summary statistics with one column per numeric feature.
func Describe(w io.Writer, ds *dataset.Dataset) error {
	summaries := ds.Describe()
	if len(summaries) == 0 {
		return errors.NewValidationError("dataset", "no numeric columns to describe", ds.Names())
	}
	header := []string{""}
	for _, s := range summaries {
		header = append(header, s.Column)
	}
	t := newTable(w, header)
	t.SetAlignment(tablewriter.ALIGN_RIGHT)

	rows := []struct {
		name string
		get  func(dataset.Summary) string
	}{
		{"count", func(s dataset.Summary) string { return strconv.Itoa(s.Count) }},
		{"mean", func(s dataset.Summary) string { return formatFloat(s.Mean, 4) }},
		{"std", func(s dataset.Summary) string { return formatFloat(s.Std, 4) }},
		{"min", func(s dataset.Summary) string { return formatFloat(s.Min, 4) }},
		{"25%", func(s dataset.Summary) string { return formatFloat(s.Q25, 4) }},
		{"50%", func(s dataset.Summary) string { return formatFloat(s.Q50, 4) }},
		{"75%", func(s dataset.Summary) string { return formatFloat(s.Q75, 4) }},
		{"max", func(s dataset.Summary) string { return formatFloat(s.Max, 4) }},
	}
	for _, r := range rows {
		line := []string{r.name}
		for _, s := range summaries {
			line = append(line, r.get(s))
		}
		t.Append(line)
	}
	t.Render()
	return nil
}

// Correlation writes the correlation matrix of the numeric columns.
func Correlation(w io.Writer, ds *dataset.Dataset) error {
	corr := ds.Correlation()
	if len(corr.Names) == 0 {
		return errors.NewValidationError("dataset", "no numeric columns to correlate", ds.Names())
	}
	t := newTable(w, append([]string{""}, corr.Names...))
	t.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i, name := range corr.Names {
		line := []string{name}
		for j := range corr.Names {
			line = append(line, formatFloat(corr.At(i, j), 2))
		}
		t.Append(line)
	}
	t.Render()
	return nil
}

// Evaluation writes one row per candidate followed by the best model.
func Evaluation(w io.Writer, r *automl.Report) error {
	if r == nil || r.Result == nil {
		return errors.NewValueError("report.Evaluation", "no evaluation result")
	}
	if _, err := fmt.Fprintf(w, "Problem type: %s (target %q, %d train / %d test rows)\n",
		r.ProblemType, r.Target, r.TrainRows, r.TestRows); err != nil {
		return err
	}

	t := newTable(w, []string{"Model", r.Result.Metric, "Status"})
	for _, e := range r.Result.Entries() {
		if e.OK() {
			t.Append([]string{e.Name, formatFloat(e.Score, 4), "ok"})
			continue
		}
		t.Append([]string{e.Name, "-", "failed: " + errors.KindOf(e.Err)})
	}
	t.Render()

	best := r.Best
	if best == "" {
		best = "none (every candidate failed)"
	}
	_, err := fmt.Fprintf(w, "Best model: %s\n", best)
	return err
}
