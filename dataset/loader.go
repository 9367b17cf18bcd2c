package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/mlwiz/pkg/errors"
	"github.com/YuminosukeSato/mlwiz/pkg/log"
)

// MissingTokens are the cell values read as missing, matching the pandas
// read_csv defaults.
var MissingTokens = []string{
	"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None", "<NA>", "n/a", "-NaN", "-nan", "#N/A",
}

// Format returns the lower-cased extension of filename without the dot, or
// an UnsupportedFormatError when it is not csv, tsv, xls or xlsx.
func Format(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".tsv", ".xls", ".xlsx":
		return ext[1:], nil
	default:
		return "", errors.NewUnsupportedFormatError(filename, ext)
	}
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Load(f, filepath.Base(path))
}

// Load reads a tabular file. The format is chosen from the extension of
// filename; the first row is the header. Every column is read as text and
// then typed: Numeric when each non-missing cell parses as a float,
// Categorical otherwise.
func Load(r io.Reader, filename string) (*Dataset, error) {
	format, err := Format(filename)
	if err != nil {
		return nil, err
	}
	logger := log.GetLoggerWithName("dataset").With(log.FilenameKey, filename, log.FormatKey, format)

	var records [][]string
	switch format {
	case "csv":
		records, err = readDelimited(r, ',')
	case "tsv":
		records, err = readDelimited(r, '\t')
	default:
		var data []byte
		data, err = io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", filename)
		}
		if format == "xlsx" {
			records, err = readXLSX(data)
		} else {
			records, err = readXLS(data)
		}
		if err != nil {
			return nil, errors.NewValidationError("file", "cannot parse "+format+" workbook: "+err.Error(), filename)
		}
	}
	if err != nil {
		return nil, errors.NewValidationError("file", "cannot parse "+format+": "+err.Error(), filename)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyDataset, "%s has no data rows", filename)
	}
	if len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], utf8BOM)
	}

	df := dataframe.LoadRecords(records, loadOptions()...)

	if df.Err != nil {
		if strings.Contains(df.Err.Error(), "empty DataFrame") {
			return nil, errors.Wrapf(errors.ErrEmptyDataset, "%s has no data rows", filename)
		}
		return nil, errors.NewValidationError("file", "cannot parse "+format+": "+df.Err.Error(), filename)
	}

	ds := fromDataFrame(df)
	logger.Debug("dataset loaded",
		log.SamplesKey, ds.NumRows(),
		log.ColumnsKey, ds.NumCols(),
	)
	return ds, nil
}

const utf8BOM = "\ufeff"

func loadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(MissingTokens),
	}
}

// readDelimited reads every record of a csv or tsv stream. Short rows are
// padded with empty (missing) cells so that Clean can drop them later.
func readDelimited(r io.Reader, delimiter rune) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return padRows(records), nil
}

func fromDataFrame(df dataframe.DataFrame) *Dataset {
	names := df.Names()
	cols := make([]*Column, len(names))
	for j, name := range names {
		s := df.Col(name)
		cols[j] = inferColumn(name, s.Records(), s.IsNaN())
	}
	return &Dataset{Columns: cols}
}

func inferColumn(name string, raw []string, missing []bool) *Column {
	values := make([]Value, len(raw))
	numeric := true
	for i, cell := range raw {
		if missing[i] {
			values[i] = Value{Missing: true}
			continue
		}
		values[i] = Value{Str: cell}
		if numeric {
			f, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				numeric = false
				continue
			}
			values[i].Num = f
		}
	}
	if !numeric {
		return &Column{Name: name, Kind: Categorical, Values: values}
	}
	for i := range values {
		values[i].Str = ""
	}
	return &Column{Name: name, Kind: Numeric, Values: values}
}

// readXLSX returns the first sheet as rows padded to the widest row.
func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return padRows(rows), nil
}

// readXLS returns the first sheet of a legacy BIFF workbook.
func readXLS(data []byte) (records [][]string, err error) {
	// パーサは壊れたファイルで panic することがある
	defer errors.Recover(&err, "dataset.readXLS")

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}
	for i := 0; i <= int(sheet.MaxRow); i++ {
		records = append(records, xlsRow(sheet, i))
	}
	return padRows(records), nil
}

// xlsRow reads one row; rows absent from the sheet come back empty.
func xlsRow(sheet *xls.WorkSheet, i int) (cells []string) {
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()
	row := sheet.Row(i)
	cells = make([]string, row.LastCol())
	for c := range cells {
		cells[c] = row.Col(c)
	}
	return cells
}

func padRows(rows [][]string) [][]string {
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	for i, r := range rows {
		if len(r) < width {
			padded := make([]string, width)
			copy(padded, r)
			rows[i] = padded
		}
	}
	return rows
}
