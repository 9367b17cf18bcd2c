// Package viz renders dataset charts with gonum/plot.
//
// Every function returns a new Figure that owns its plots, so concurrent
// requests never share drawing state.
//
//	fig, err := viz.Bivariate(ds, "sepal_length", "petal_length")
//	if err != nil { ... }
//	err = fig.Save("scatter.png")
package viz

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
	_ "gonum.org/v1/plot/vg/vgpdf"
	_ "gonum.org/v1/plot/vg/vgsvg"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// Formats lists the output formats accepted by WriteTo.
var Formats = []string{"png", "svg", "pdf"}

// Figure is a grid of plots rendered onto one canvas.
type Figure struct {
	Width  vg.Length
	Height vg.Length
	grid   [][]*plot.Plot
}

func single(p *plot.Plot, w, h vg.Length) *Figure {
	return &Figure{Width: w, Height: h, grid: [][]*plot.Plot{{p}}}
}

// Dims returns the number of rows and columns of the plot grid.
func (f *Figure) Dims() (rows, cols int) {
	if len(f.grid) == 0 {
		return 0, 0
	}
	return len(f.grid), len(f.grid[0])
}

// Plot returns the plot at row i, column j.
func (f *Figure) Plot(i, j int) *plot.Plot {
	return f.grid[i][j]
}

// WriteTo renders the figure in format ("png", "svg" or "pdf") to w.
func (f *Figure) WriteTo(w io.Writer, format string) error {
	format = strings.ToLower(format)
	if !supported(format) {
		return errors.NewValidationError("format", "must be one of png, svg, pdf", format)
	}
	c, err := draw.NewFormattedCanvas(f.Width, f.Height, format)
	if err != nil {
		return errors.Wrap(err, "viz: create canvas")
	}
	f.draw(draw.New(c))
	if _, err := c.WriteTo(w); err != nil {
		return errors.Wrap(err, "viz: write figure")
	}
	return nil
}

// Save renders the figure to path; the format comes from the extension.
func (f *Figure) Save(path string) (err error) {
	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if !supported(strings.ToLower(format)) {
		return errors.NewValidationError("format", "must be one of png, svg, pdf", format)
	}
	out, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "viz: create %s", path)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return f.WriteTo(out, format)
}

func (f *Figure) draw(dc draw.Canvas) {
	rows, cols := f.Dims()
	if rows == 1 && cols == 1 {
		f.grid[0][0].Draw(dc)
		return
	}
	tiles := draw.Tiles{
		Rows: rows,
		Cols: cols,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}
	canvases := plot.Align(f.grid, tiles, dc)
	for i := range f.grid {
		for j, p := range f.grid[i] {
			if p != nil {
				p.Draw(canvases[i][j])
			}
		}
	}
}

func supported(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}
