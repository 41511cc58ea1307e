// Package parser reads workbook files into raw row records keyed by column
// letter. It does no field mapping: values stay text so the mapper can parse
// numbers and dates without losing leading zeros or locale formatting.
package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// MaxSheetRows is the hard ceiling on data rows per sheet
const MaxSheetRows = 50000

// SheetTooLargeError is returned when a sheet holds more data rows than the
// ceiling. Nothing is parsed from the sheet in that case.
type SheetTooLargeError struct {
	Rows  int
	Limit int
}

func (e *SheetTooLargeError) Error() string {
	return fmt.Sprintf("sheet has %d rows, exceeding the limit of %d", e.Rows, e.Limit)
}

// Row is one data row, keyed by column letter. Cells that are empty or
// outside the row's extent are absent from the map.
type Row map[string]string

// Config controls workbook parsing
type Config struct {
	// MaxRows caps the number of data rows per sheet. Zero means MaxSheetRows.
	MaxRows int
}

// Parser reads xlsx workbooks
type Parser struct {
	maxRows int
}

// New creates a parser with the given config
func New(cfg Config) *Parser {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = MaxSheetRows
	}
	return &Parser{maxRows: maxRows}
}

// SheetNames returns the workbook's sheet names in workbook order
func (p *Parser) SheetNames(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadSheet returns the sheet's data rows keyed by column letter. The first
// row is treated as the header and discarded. The read is not trusted to the
// workbook's declared dimension: excelize walks the shared strings and cell
// table directly, so rows appended past a stale dimension are still seen.
func (p *Parser) ReadSheet(data []byte, sheetName string) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	defer rows.Close()

	var out []Row
	rowIndex := 0
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rowIndex+1, err)
		}
		rowIndex++
		if rowIndex == 1 {
			// Header row
			continue
		}
		if rowIndex-1 > p.maxRows {
			// Count the remaining rows so the error names the real size
			extra := 0
			for rows.Next() {
				extra++
			}
			return nil, &SheetTooLargeError{Rows: rowIndex - 1 + extra, Limit: p.maxRows}
		}

		record := make(Row, len(cells))
		for i, cell := range cells {
			if cell == "" {
				continue
			}
			letter, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return nil, fmt.Errorf("failed to name column %d: %w", i+1, err)
			}
			record[letter] = cell
		}
		out = append(out, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheetName, err)
	}
	return out, nil
}
