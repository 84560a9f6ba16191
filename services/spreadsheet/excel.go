// Package spreadsheet reads and writes the xlsx files used for bulk imports and exports.
package spreadsheet

import (
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet = "Sheet1"
)

var (
	ErrNoSheet  = errors.New("the file does not contain any sheet")
	ErrNoHeader = errors.New("the first row must hold the column names")
)

// Record is a data row keyed by its normalized column name.
type Record struct {
	Row    int // 1-based row number in the sheet
	Values map[string]string
}

// Get returns the trimmed value of column key, "" if missing.
func (r Record) Get(key string) string {
	return strings.TrimSpace(r.Values[key])
}

// NormalizeHeader lowers a column name and replaces inner spaces with underscores.
func NormalizeHeader(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// ReadRecords reads the first sheet of an xlsx file; blank rows are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening excel file")
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoSheet
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, errors.Wrapf(err, "getting rows from sheet %s", sheetName)
	}
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	var hasHeader bool
	for i, name := range rows[0] {
		header[i] = NormalizeHeader(name)
		hasHeader = hasHeader || header[i] != ""
	}
	if !hasHeader {
		return nil, ErrNoHeader
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := Record{Row: i + 2, Values: make(map[string]string, len(header))}
		var blank = true
		for j, val := range row {
			if j >= len(header) || header[j] == "" {
				continue
			}
			val = strings.TrimSpace(val)
			rec.Values[header[j]] = val
			blank = blank && val == ""
		}
		if !blank {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Write renders a single sheet holding header then rows.
func Write(header []string, rows [][]interface{}) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()

	headerRow := make([]interface{}, len(header))
	for i, name := range header {
		headerRow[i] = name
	}
	if err := setRow(f, 1, headerRow); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := setRow(f, i+2, row); err != nil {
			return nil, err
		}
	}
	if len(header) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(header))
		if err != nil {
			return nil, errors.Wrap(err, "naming last column")
		}
		if err := f.SetColWidth(defaultSheet, "A", lastCol, 20); err != nil {
			return nil, errors.Wrap(err, "setting column width")
		}
	}

	buf, err := f.WriteToBuffer()
	return buf, errors.Wrap(err, "writing excel file")
}

func setRow(f *excelize.File, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return errors.Wrap(err, "naming cell")
	}
	return errors.Wrapf(f.SetSheetRow(defaultSheet, cell, &values), "writing row %d", rowNum)
}
