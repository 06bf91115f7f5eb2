// =============================================================================
// Order/Invoice Reconciler - XLSX Reader
// =============================================================================
//
// This module reads one worksheet of an order or invoice workbook into a
// table.Table.
//
// NUMERIC CELLS:
//   Ledger amounts follow the regional convention ("1.234,50"). Cells that
//   the workbook stores as real numbers are rendered in that same
//   convention (12.5 -> "12,5") so that every cell reaches the numeric
//   coercer in one format. Text cells are passed through verbatim.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadSheet reads the configured sheet (the first sheet when none is named)
// of the workbook at path.
//
// PARAMETERS:
//   - path: The workbook file.
//   - settings: Sheet name and 1-based header row.
//
// RETURNS:
//   - The sheet as a table; Source is "path[sheet]".
//   - An error if the file or sheet cannot be read.
func ReadSheet(path string, settings config.XLSXSettings) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open workbook %s", path)
	}
	defer f.Close()

	sheet := settings.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, eris.Errorf("workbook %s has no sheets", path)
		}
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, eris.Errorf("workbook %s has no sheet %q (available: %s)",
			path, sheet, strings.Join(f.GetSheetList(), ", "))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read rows of %s[%s]", path, sheet)
	}

	headerRow := settings.HeaderRow
	if headerRow <= 0 {
		headerRow = 1
	}
	if len(rows) < headerRow {
		return nil, eris.Errorf("sheet %s[%s] has no header row %d", path, sheet, headerRow)
	}

	headers := cleanHeaders(rows[headerRow-1])

	data := make([][]string, 0, len(rows)-headerRow)
	for r := headerRow; r < len(rows); r++ {
		row := rows[r]
		if table.IsRowEmpty(row) {
			continue
		}
		rendered := make([]string, len(row))
		for c, raw := range row {
			rendered[c] = renderCell(f, sheet, c, r, raw)
		}
		data = append(data, rendered)
	}

	t := table.New(headers, data)
	t.Source = fmt.Sprintf("%s[%s]", path, sheet)
	return t, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// renderCell returns the cell text the engine sees. col and row are
// 0-based.
func renderCell(f *excelize.File, sheet string, col, row int, raw string) string {
	if raw == "" {
		return raw
	}
	axis, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil {
		return raw
	}
	if typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset {
		return raw
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return commaDecimal(v)
}

// commaDecimal formats v without thousands separators and with a comma
// as the decimal separator.
func commaDecimal(v float64) string {
	return strings.Replace(strconv.FormatFloat(v, 'f', -1, 64), ".", ",", 1)
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}
