package viz

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/text"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// HistogramBins is the number of bins used for numeric distributions.
const HistogramBins = 10

// Kind selects the chart produced by Plot.
type Kind string

const (
	KindUnivariate   Kind = "univariate"
	KindBivariate    Kind = "bivariate"
	KindMultivariate Kind = "multivariate"
	KindCorrelation  Kind = "correlation-heatmap"
)

// Plot dispatches on kind. Unknown kinds fall back to the correlation heat map.
func Plot(ds *dataset.Dataset, kind Kind, columns ...string) (*Figure, error) {
	switch kind {
	case KindUnivariate:
		if len(columns) != 1 {
			return nil, errors.NewValidationError("columns", "univariate plot needs exactly one column", columns)
		}
		return Univariate(ds, columns[0])
	case KindBivariate:
		if len(columns) != 2 {
			return nil, errors.NewValidationError("columns", "bivariate plot needs exactly two columns", columns)
		}
		return Bivariate(ds, columns[0], columns[1])
	case KindMultivariate:
		return Multivariate(ds, columns)
	default:
		return CorrelationHeatmap(ds)
	}
}

// Univariate draws a histogram of a numeric column or a count bar chart of a
// categorical one.
func Univariate(ds *dataset.Dataset, column string) (*Figure, error) {
	col, err := ds.Column(column)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = "Distribution of " + column
	p.X.Label.Text = column

	if col.Kind == dataset.Numeric {
		vals := present(col.Floats())
		if len(vals) == 0 {
			return nil, errors.NewValidationError("column", "no values to plot", column)
		}
		h, err := plotter.NewHist(plotter.Values(vals), HistogramBins)
		if err != nil {
			return nil, errors.Wrap(err, "viz: histogram")
		}
		p.Add(h)
		p.Y.Label.Text = "Count"
		return single(p, 6*vg.Inch, 4*vg.Inch), nil
	}

	labels, counts := countCategories(col)
	if len(labels) == 0 {
		return nil, errors.NewValidationError("column", "no values to plot", column)
	}
	bars, err := plotter.NewBarChart(counts, vg.Points(20))
	if err != nil {
		return nil, errors.Wrap(err, "viz: bar chart")
	}
	p.Add(bars)
	p.NominalX(labels...)
	p.Y.Label.Text = "Count"
	return single(p, 6*vg.Inch, 4*vg.Inch), nil
}

// Bivariate draws a scatter plot of two numeric columns.
func Bivariate(ds *dataset.Dataset, x, y string) (*Figure, error) {
	xs, ys, err := numericPair(ds, x, y)
	if err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", x, y)
	p.X.Label.Text = x
	p.Y.Label.Text = y
	if err := addScatter(p, xs, ys); err != nil {
		return nil, err
	}
	return single(p, 6*vg.Inch, 4*vg.Inch), nil
}

// Multivariate draws a pair plot: histograms on the diagonal and scatter
// plots elsewhere. Categorical columns are skipped.
func Multivariate(ds *dataset.Dataset, columns []string) (*Figure, error) {
	if len(columns) == 0 {
		return nil, errors.NewValidationError("columns", "select at least one column", columns)
	}
	var names []string
	for _, name := range columns {
		col, err := ds.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind == dataset.Numeric {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, errors.NewValidationError("columns", "pair plot needs a numeric column", columns)
	}

	n := len(names)
	grid := make([][]*plot.Plot, n)
	for i := range grid {
		grid[i] = make([]*plot.Plot, n)
		for j := range grid[i] {
			p := plot.New()
			if i == n-1 {
				p.X.Label.Text = names[j]
			}
			if j == 0 {
				p.Y.Label.Text = names[i]
			}
			if i == j {
				col, _ := ds.Column(names[i])
				vals := present(col.Floats())
				if len(vals) > 0 {
					h, err := plotter.NewHist(plotter.Values(vals), HistogramBins)
					if err != nil {
						return nil, errors.Wrap(err, "viz: histogram")
					}
					p.Add(h)
				}
			} else {
				xs, ys, err := numericPair(ds, names[j], names[i])
				if err != nil {
					return nil, err
				}
				if err := addScatter(p, xs, ys); err != nil {
					return nil, err
				}
			}
			grid[i][j] = p
		}
	}
	side := vg.Length(n) * 2.5 * vg.Inch
	return &Figure{Width: side, Height: side, grid: grid}, nil
}

// CorrelationHeatmap draws the Pearson correlation matrix of the numeric
// columns with a cool-warm palette on [-1, 1] and two-decimal annotations.
func CorrelationHeatmap(ds *dataset.Dataset) (*Figure, error) {
	corr := ds.Correlation()
	n := len(corr.Names)
	if n == 0 {
		return nil, errors.NewValidationError("dataset", "no numeric columns to correlate", ds.Names())
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)
	h := plotter.NewHeatMap(corrGrid{corr}, cm.Palette(255))
	h.Min, h.Max = -1, 1
	h.NaN = color.Gray{Y: 200}

	p := plot.New()
	p.Title.Text = "Correlation Matrix"
	p.Add(h)

	xs := make(plotter.XYs, 0, n*n)
	labels := make([]string, 0, n*n)
	xticks := make([]plot.Tick, n)
	yticks := make([]plot.Tick, n)
	for i, name := range corr.Names {
		xticks[i] = plot.Tick{Value: float64(i), Label: name}
		yticks[i] = plot.Tick{Value: float64(n - 1 - i), Label: name}
		for j := 0; j < n; j++ {
			xs = append(xs, plotter.XY{X: float64(j), Y: float64(n - 1 - i)})
			if v := corr.At(i, j); !math.IsNaN(v) {
				labels = append(labels, fmt.Sprintf("%.2f", v))
			} else {
				labels = append(labels, "")
			}
		}
	}
	annot, err := plotter.NewLabels(plotter.XYLabels{XYs: xs, Labels: labels})
	if err != nil {
		return nil, errors.Wrap(err, "viz: annotations")
	}
	for i := range annot.TextStyle {
		annot.TextStyle[i].XAlign = text.XCenter
		annot.TextStyle[i].YAlign = text.YCenter
	}
	p.Add(annot)
	p.X.Tick.Marker = plot.ConstantTicks(xticks)
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)

	side := vg.Length(n)*0.9*vg.Inch + 2*vg.Inch
	return single(p, side+vg.Inch, side), nil
}

// corrGrid lays the matrix out with row 0 at the top.
type corrGrid struct {
	m *dataset.CorrelationMatrix
}

func (g corrGrid) Dims() (c, r int) {
	n := len(g.m.Names)
	return n, n
}

func (g corrGrid) Z(c, r int) float64 {
	n := len(g.m.Names)
	return g.m.At(n-1-r, c)
}

func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

func numericPair(ds *dataset.Dataset, x, y string) ([]float64, []float64, error) {
	cx, err := ds.Column(x)
	if err != nil {
		return nil, nil, err
	}
	cy, err := ds.Column(y)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range []*dataset.Column{cx, cy} {
		if c.Kind != dataset.Numeric {
			return nil, nil, errors.NewValidationError("columns", "scatter plot needs numeric columns", c.Name)
		}
	}
	fx, fy := cx.Floats(), cy.Floats()
	var xs, ys []float64
	for i := range fx {
		if math.IsNaN(fx[i]) || math.IsNaN(fy[i]) {
			continue
		}
		xs = append(xs, fx[i])
		ys = append(ys, fy[i])
	}
	return xs, ys, nil
}

func addScatter(p *plot.Plot, xs, ys []float64) error {
	if len(xs) == 0 {
		return nil
	}
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i].X = xs[i]
		pts[i].Y = ys[i]
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "viz: scatter")
	}
	s.GlyphStyle.Radius = vg.Points(2)
	p.Add(s)
	return nil
}

func present(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// countCategories counts values in first-seen order, skipping missing cells.
func countCategories(col *dataset.Column) ([]string, plotter.Values) {
	index := map[string]int{}
	var labels []string
	var counts plotter.Values
	for _, v := range col.Values {
		if v.Missing {
			continue
		}
		k := v.String()
		i, ok := index[k]
		if !ok {
			i = len(labels)
			index[k] = i
			labels = append(labels, k)
			counts = append(counts, 0)
		}
		counts[i]++
	}
	return labels, counts
}
