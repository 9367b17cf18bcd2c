// Package dataset holds the in-memory tabular data the rest of mlwiz works
// on: loading from CSV/TSV/Excel, dropping incomplete rows, summary
// statistics and the train/test split.
package dataset

import (
	"math"
	"strconv"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
)

// Kind is the inferred type of a column.
type Kind int

const (
	// Numeric columns hold float64 values.
	Numeric Kind = iota
	// Categorical columns hold strings.
	Categorical
)

func (k Kind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "categorical"
}

// Value is a single cell. Which of Num and Str is meaningful depends on the
// Kind of the owning column.
type Value struct {
	Num     float64
	Str     string
	Missing bool
}

// String formats the cell for display. Missing cells print as NaN like pandas.
func (v Value) String() string {
	if v.Missing {
		return "NaN"
	}
	if v.Str != "" {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'g', -1, 64)
}

// Column is one named, typed column.
type Column struct {
	Name   string
	Kind   Kind
	Values []Value
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Values) }

// Floats returns the column as float64s; missing cells become NaN.
// Categorical columns return nil.
func (c *Column) Floats() []float64 {
	if c.Kind != Numeric {
		return nil
	}
	out := make([]float64, len(c.Values))
	for i, v := range c.Values {
		if v.Missing {
			out[i] = math.NaN()
			continue
		}
		out[i] = v.Num
	}
	return out
}

// Strings returns every cell formatted with Value.String.
func (c *Column) Strings() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = v.String()
	}
	return out
}

// NumUnique returns the number of distinct non-missing values.
// Numeric values are keyed by value (0 == -0).
func (c *Column) NumUnique() int {
	if c.Kind == Numeric {
		seen := make(map[float64]struct{}, len(c.Values))
		for _, v := range c.Values {
			if v.Missing {
				continue
			}
			seen[v.Num] = struct{}{}
		}
		return len(seen)
	}
	seen := make(map[string]struct{}, len(c.Values))
	for _, v := range c.Values {
		if v.Missing {
			continue
		}
		seen[v.Str] = struct{}{}
	}
	return len(seen)
}

// HasMissing reports whether any cell is missing.
func (c *Column) HasMissing() bool {
	for _, v := range c.Values {
		if v.Missing {
			return true
		}
	}
	return false
}

func (c *Column) take(rows []int) *Column {
	values := make([]Value, len(rows))
	for i, r := range rows {
		values[i] = c.Values[r]
	}
	return &Column{Name: c.Name, Kind: c.Kind, Values: values}
}

// Dataset is an ordered set of equally long columns.
type Dataset struct {
	Columns []*Column
}

// New builds a Dataset, checking that every column has the same length
// and that names are unique.
func New(columns ...*Column) (*Dataset, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if seen[c.Name] {
			return nil, errors.NewValidationError("columns", "duplicate column name", c.Name)
		}
		seen[c.Name] = true
		if c.Len() != columns[0].Len() {
			return nil, errors.NewDimensionError("dataset.New", columns[0].Len(), c.Len(), 0)
		}
	}
	return &Dataset{Columns: columns}, nil
}

// NumRows returns the number of rows.
func (ds *Dataset) NumRows() int {
	if ds == nil || len(ds.Columns) == 0 {
		return 0
	}
	return ds.Columns[0].Len()
}

// NumCols returns the number of columns.
func (ds *Dataset) NumCols() int {
	if ds == nil {
		return 0
	}
	return len(ds.Columns)
}

// Names returns the column names in header order.
func (ds *Dataset) Names() []string {
	names := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (ds *Dataset) Column(name string) (*Column, error) {
	for _, c := range ds.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, errors.NewMissingTargetColumnError(name, ds.Names())
}

// NumericColumns returns the numeric columns in header order.
func (ds *Dataset) NumericColumns() []*Column {
	var out []*Column
	for _, c := range ds.Columns {
		if c.Kind == Numeric {
			out = append(out, c)
		}
	}
	return out
}

// Take returns a new Dataset holding the given rows in the given order.
func (ds *Dataset) Take(rows []int) *Dataset {
	cols := make([]*Column, len(ds.Columns))
	for i, c := range ds.Columns {
		cols[i] = c.take(rows)
	}
	return &Dataset{Columns: cols}
}

// Head returns the first n rows (5 when n <= 0), like DataFrame.head().
func (ds *Dataset) Head(n int) *Dataset {
	if n <= 0 {
		n = 5
	}
	if n > ds.NumRows() {
		n = ds.NumRows()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return ds.Take(rows)
}

// Row returns row i formatted for display.
func (ds *Dataset) Row(i int) []string {
	out := make([]string, len(ds.Columns))
	for j, c := range ds.Columns {
		out[j] = c.Values[i].String()
	}
	return out
}

// Clean returns a copy of ds without the rows that have any missing value.
// Column kinds are kept as loaded. The input is never modified and
// Clean(Clean(ds)) equals Clean(ds).
func Clean(ds *Dataset) *Dataset {
	var keep []int
	for i := 0; i < ds.NumRows(); i++ {
		complete := true
		for _, c := range ds.Columns {
			if c.Values[i].Missing {
				complete = false
				break
			}
		}
		if complete {
			keep = append(keep, i)
		}
	}
	return ds.Take(keep)
}
