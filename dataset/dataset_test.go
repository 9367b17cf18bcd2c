package dataset

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

const irisLike = `sepal,petal,species
5.1,1.4,setosa
4.9,,setosa
6.3,4.9,versicolor
5.8,5.1,virginica
NA,3.9,versicolor
6.0,4.5,
`

func mustLoad(t *testing.T, content, filename string) *Dataset {
	t.Helper()
	ds, err := Load(strings.NewReader(content), filename)
	require.NoError(t, err)
	return ds
}

func TestLoad_CSVInfersKindsAndMissing(t *testing.T) {
	ds := mustLoad(t, irisLike, "iris.csv")

	assert.Equal(t, []string{"sepal", "petal", "species"}, ds.Names())
	assert.Equal(t, 6, ds.NumRows())

	sepal, err := ds.Column("sepal")
	require.NoError(t, err)
	assert.Equal(t, Numeric, sepal.Kind)
	assert.True(t, sepal.Values[4].Missing)
	assert.Equal(t, 6.3, sepal.Values[2].Num)

	petal, _ := ds.Column("petal")
	assert.True(t, petal.Values[1].Missing)

	species, _ := ds.Column("species")
	assert.Equal(t, Categorical, species.Kind)
	assert.Equal(t, "versicolor", species.Values[2].Str)
	assert.True(t, species.Values[5].Missing)
	assert.Equal(t, 3, species.NumUnique())
}

func TestLoad_TSV(t *testing.T) {
	ds := mustLoad(t, "a\tb\n1\tx\n2\ty\n", "data.TSV")
	a, err := ds.Column("a")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, a.Floats())
	b, _ := ds.Column("b")
	assert.Equal(t, Categorical, b.Kind)
}

func TestLoad_XLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"x", "label"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1.5, "a"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{2.5, "b"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{3.5}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := Load(bytes.NewReader(buf.Bytes()), "book.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 3, ds.NumRows())

	x, _ := ds.Column("x")
	assert.Equal(t, Numeric, x.Kind)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, x.Floats())

	label, _ := ds.Column("label")
	assert.True(t, label.Values[2].Missing)
}

func TestLoad_ShortRowIsPaddedAndCleaned(t *testing.T) {
	ds := mustLoad(t, "a,b,c\n1,2,3\n4,5\n7,8,9\n", "ragged.csv")
	assert.Equal(t, 3, ds.NumRows())

	c, err := ds.Column("c")
	require.NoError(t, err)
	assert.Equal(t, Numeric, c.Kind)
	assert.True(t, c.Values[1].Missing)

	cleaned := Clean(ds)
	assert.Equal(t, 2, cleaned.NumRows())
	a, _ := cleaned.Column("a")
	assert.Equal(t, []float64{1, 7}, a.Floats())
}

func TestLoad_StripsByteOrderMark(t *testing.T) {
	ds := mustLoad(t, "\ufeffx,y\n1,2\n3,4\n", "excel.csv")
	assert.Equal(t, []string{"x", "y"}, ds.Names())

	x, err := ds.Column("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, x.Floats())

	tsv := mustLoad(t, "\ufeffx\ty\n1\t2\n", "excel.tsv")
	assert.Equal(t, []string{"x", "y"}, tsv.Names())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader("{}"), "data.json")
	assert.Equal(t, errors.KindUnsupportedFormat, errors.KindOf(err))
	var ufe *errors.UnsupportedFormatError
	require.True(t, errors.As(err, &ufe))
	assert.Equal(t, ".json", ufe.Extension)

	_, err = Load(strings.NewReader("a,b\n"), "header_only.csv")
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
	assert.Equal(t, errors.KindEmptyDataset, errors.KindOf(err))

	_, err = Load(strings.NewReader(""), "empty.csv")
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))

	_, err = Load(strings.NewReader("not a workbook"), "broken.xls")
	assert.Error(t, err)

	_, err = Load(strings.NewReader("not a workbook"), "broken.xlsx")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n3,4\n"), 0o600))

	ds, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestClean_DropsIncompleteRowsAndIsIdempotent(t *testing.T) {
	ds := mustLoad(t, irisLike, "iris.csv")

	cleaned := Clean(ds)
	assert.Equal(t, 3, cleaned.NumRows())
	for _, c := range cleaned.Columns {
		assert.False(t, c.HasMissing(), c.Name)
	}
	// 入力は変更されない
	assert.Equal(t, 6, ds.NumRows())

	twice := Clean(cleaned)
	assert.Equal(t, cleaned, twice)

	species, _ := cleaned.Column("species")
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, species.Strings())
}

func TestClean_KeepsColumnKinds(t *testing.T) {
	ds := mustLoad(t, "a,b\n1,x\n2,\nfoo,3\n", "kinds.csv")
	cleaned := Clean(ds)
	a, _ := cleaned.Column("a")
	assert.Equal(t, Categorical, a.Kind)
	assert.Equal(t, 2, cleaned.NumRows())
}

func TestHeadAndRow(t *testing.T) {
	ds := mustLoad(t, irisLike, "iris.csv")

	head := ds.Head(0)
	assert.Equal(t, 5, head.NumRows())
	assert.Equal(t, 2, ds.Head(2).NumRows())
	assert.Equal(t, 6, ds.Head(100).NumRows())

	assert.Equal(t, []string{"4.9", "NaN", "setosa"}, ds.Row(1))
}

func TestColumnLookup(t *testing.T) {
	ds := mustLoad(t, irisLike, "iris.csv")
	_, err := ds.Column("price")
	var mtc *errors.MissingTargetColumnError
	require.True(t, errors.As(err, &mtc))
	assert.Equal(t, []string{"sepal", "petal", "species"}, mtc.Available)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "numeric", Numeric.String())
	assert.Equal(t, "categorical", Categorical.String())
}

func TestNumUnique(t *testing.T) {
	ds := mustLoad(t, "v,s\n0,a\n-0,a\n0.0,b\n1e0,\n1,b\n", "unique.csv")
	v, _ := ds.Column("v")
	assert.Equal(t, Numeric, v.Kind)
	assert.Equal(t, 2, v.NumUnique())

	s, _ := ds.Column("s")
	assert.Equal(t, 2, s.NumUnique())
}

func TestNew(t *testing.T) {
	a := &Column{Name: "a", Values: []Value{{Num: 1}, {Num: 2}}}
	b := &Column{Name: "b", Values: []Value{{Num: 1}}}
	_, err := New(a, b)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = New(a, a)
	assert.Error(t, err)

	ds, err := New(a)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())
}

func TestTrainTestSplit(t *testing.T) {
	values := make([]Value, 10)
	for i := range values {
		values[i] = Value{Num: float64(i)}
	}
	ds, err := New(&Column{Name: "id", Values: values})
	require.NoError(t, err)

	split, err := TrainTestSplit(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, 8, split.Train.NumRows())
	assert.Equal(t, 2, split.Test.NumRows())

	seen := map[float64]int{}
	for _, part := range []*Dataset{split.Train, split.Test} {
		for _, v := range part.Columns[0].Values {
			seen[v.Num]++
		}
	}
	assert.Len(t, seen, 10)
	for id, n := range seen {
		assert.Equal(t, 1, n, "row %v", id)
	}

	again, err := TrainTestSplit(ds, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, split, again)

	// ceil(0.25 * 10) = 3
	split, err = TrainTestSplit(ds, 0.25, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, split.Test.NumRows())
}

func TestTrainTestSplit_Errors(t *testing.T) {
	one, err := New(&Column{Name: "id", Values: []Value{{Num: 1}}})
	require.NoError(t, err)

	_, err = TrainTestSplit(one, 0.2, 42)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = TrainTestSplit(one, 1.5, 42)
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))

	_, err = TrainTestSplit(&Dataset{}, 0.2, 42)
	assert.True(t, errors.Is(err, errors.ErrEmptyDataset))
}

func TestFeatureMatrix(t *testing.T) {
	ds := Clean(mustLoad(t, irisLike, "iris.csv"))

	X, names, err := ds.FeatureMatrix("species")
	require.NoError(t, err)
	assert.Equal(t, []string{"sepal", "petal"}, names)
	r, c := X.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 5.1, X.At(0, 0))

	_, _, err = ds.FeatureMatrix("sepal")
	var nnf *errors.NonNumericFeatureError
	require.True(t, errors.As(err, &nnf))
	assert.Equal(t, "species", nnf.Column)
	assert.Equal(t, errors.KindModelFitFailure, errors.KindOf(err))

	_, _, err = ds.FeatureMatrix("nope")
	assert.Equal(t, errors.KindMissingTargetColumn, errors.KindOf(err))
}

func TestDescribe(t *testing.T) {
	ds := mustLoad(t, "x,y,s\n1,10,a\n2,10,b\n3,10,c\n4,,d\n", "d.csv")

	summaries := ds.Describe()
	require.Len(t, summaries, 2)

	x := summaries[0]
	assert.Equal(t, "x", x.Column)
	assert.Equal(t, 4, x.Count)
	assert.InDelta(t, 2.5, x.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), x.Std, 1e-12)
	assert.Equal(t, 1.0, x.Min)
	assert.InDelta(t, 1.75, x.Q25, 1e-12)
	assert.InDelta(t, 2.5, x.Q50, 1e-12)
	assert.InDelta(t, 3.25, x.Q75, 1e-12)
	assert.Equal(t, 4.0, x.Max)

	y := summaries[1]
	assert.Equal(t, 3, y.Count)
	assert.Equal(t, 0.0, y.Std)
	assert.Equal(t, 10.0, y.Q50)
}

func TestDescribe_SingleValue(t *testing.T) {
	ds := mustLoad(t, "x\n7\n", "one.csv")
	s := ds.Describe()[0]
	assert.Equal(t, 1, s.Count)
	assert.True(t, math.IsNaN(s.Std))
	assert.Equal(t, 7.0, s.Q25)
	assert.Equal(t, 7.0, s.Q75)
}

func TestCorrelation(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	ds := mustLoad(t, "a,b,c,k,s\n1,2,3,5,x\n2,4,2,5,y\n3,6,1,5,z\n", "c.csv")
	corr := ds.Correlation()

	assert.Equal(t, []string{"a", "b", "c", "k"}, corr.Names)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)
	assert.InDelta(t, -1.0, corr.At(0, 2), 1e-12)
	assert.Equal(t, corr.At(0, 2), corr.At(2, 0))
	assert.Equal(t, 1.0, corr.At(1, 1))
	assert.True(t, math.IsNaN(corr.At(3, 3)))
	assert.True(t, math.IsNaN(corr.At(0, 3)))

	require.Len(t, warnings, 1)
	var um *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &um))
}
