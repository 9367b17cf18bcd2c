package viz

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlwiz/dataset"
	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

const irisLike = `sepal,petal,width,species
5.1,1.4,0.2,setosa
4.9,1.5,0.2,setosa
6.3,4.7,1.6,versicolor
6.4,4.5,1.5,versicolor
7.1,5.9,2.1,virginica
6.5,5.8,2.2,virginica
5.0,,0.3,setosa
`

func irisDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load(strings.NewReader(irisLike), "iris.csv")
	require.NoError(t, err)
	return ds
}

func render(t *testing.T, fig *Figure, format string) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fig.WriteTo(&buf, format))
	require.NotZero(t, buf.Len())
	return buf.Bytes()
}

func TestUnivariate(t *testing.T) {
	ds := irisDataset(t)

	fig, err := Univariate(ds, "petal")
	require.NoError(t, err)
	assert.Equal(t, "Distribution of petal", fig.Plot(0, 0).Title.Text)
	assert.True(t, bytes.HasPrefix(render(t, fig, "png"), []byte("\x89PNG")))

	fig, err = Univariate(ds, "species")
	require.NoError(t, err)
	assert.Contains(t, string(render(t, fig, "svg")), "<svg")

	_, err = Univariate(ds, "nope")
	assert.Equal(t, errors.KindMissingTargetColumn, errors.KindOf(err))
}

func TestCountCategories(t *testing.T) {
	ds := irisDataset(t)
	col, err := ds.Column("species")
	require.NoError(t, err)

	labels, counts := countCategories(col)
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, labels)
	assert.Equal(t, []float64{3, 2, 2}, []float64(counts))
}

func TestBivariate(t *testing.T) {
	ds := irisDataset(t)

	fig, err := Bivariate(ds, "sepal", "petal")
	require.NoError(t, err)
	assert.Equal(t, "sepal vs petal", fig.Plot(0, 0).Title.Text)
	render(t, fig, "png")

	_, err = Bivariate(ds, "sepal", "species")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestMultivariate(t *testing.T) {
	ds := irisDataset(t)

	fig, err := Multivariate(ds, []string{"sepal", "petal", "species", "width"})
	require.NoError(t, err)
	rows, cols := fig.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, "width", fig.Plot(2, 2).X.Label.Text)
	assert.Equal(t, "petal", fig.Plot(1, 0).Y.Label.Text)
	render(t, fig, "png")

	_, err = Multivariate(ds, nil)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	_, err = Multivariate(ds, []string{"species"})
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestCorrelationHeatmap(t *testing.T) {
	ds := irisDataset(t)

	fig, err := CorrelationHeatmap(ds)
	require.NoError(t, err)
	assert.Equal(t, "Correlation Matrix", fig.Plot(0, 0).Title.Text)
	out := string(render(t, fig, "svg"))
	assert.Contains(t, out, "1.00")

	grid := corrGrid{ds.Correlation()}
	c, r := grid.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 3, r)
	// 最上段は先頭の列
	assert.Equal(t, grid.m.At(0, 1), grid.Z(1, 2))

	cat, err := dataset.New(&dataset.Column{Name: "c", Kind: dataset.Categorical, Values: []dataset.Value{{Str: "a"}}})
	require.NoError(t, err)
	_, err = CorrelationHeatmap(cat)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestPlotDispatch(t *testing.T) {
	ds := irisDataset(t)

	fig, err := Plot(ds, KindBivariate, "sepal", "width")
	require.NoError(t, err)
	assert.Equal(t, "sepal vs width", fig.Plot(0, 0).Title.Text)

	fig, err = Plot(ds, Kind("something-else"))
	require.NoError(t, err)
	assert.Equal(t, "Correlation Matrix", fig.Plot(0, 0).Title.Text)

	_, err = Plot(ds, KindBivariate, "sepal")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	_, err = Plot(ds, KindUnivariate)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}

func TestFigureOutput(t *testing.T) {
	ds := irisDataset(t)
	fig, err := Univariate(ds, "sepal")
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(render(t, fig, "pdf"), []byte("%PDF")))

	var buf bytes.Buffer
	err = fig.WriteTo(&buf, "bmp")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	path := filepath.Join(t.TempDir(), "sepal.png")
	require.NoError(t, fig.Save(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	err = fig.Save(filepath.Join(t.TempDir(), "sepal.gif"))
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
}
