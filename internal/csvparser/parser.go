// =============================================================================
// Order/Invoice Reconciler - CSV Reader
// =============================================================================
//
// This module reads CSV exports of either ledger into a table.Table.
//
// FEATURES:
//   - Configurable delimiter (",", ";", "|", tab)
//   - Multi-row headers merged per column
//   - Configurable data start row
//   - Non-UTF-8 input (ISO-8859-1, Windows-1252) decoded on the fly
//   - Ragged rows and lazy quotes tolerated
//
// Cell values are kept verbatim; trimming and coercion happen later.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file into a table.
func Parse(filePath string, settings config.CSVSettings) (*table.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open %s", filePath)
	}
	defer file.Close()

	t, err := ParseReader(file, settings)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", filePath)
	}
	t.Source = filePath
	return t, nil
}

// ParseReader reads CSV data from r into a table.
func ParseReader(r io.Reader, settings config.CSVSettings) (*table.Table, error) {
	dec, err := decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), dec))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "failed to read CSV")
	}
	if len(allRows) == 0 {
		return nil, eris.New("CSV file is empty")
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, eris.Wrap(err, "failed to extract headers")
	}

	return table.New(headers, extractDataRows(allRows, settings)), nil
}

// decoder returns the transformer that turns the configured encoding into
// UTF-8. A leading UTF-8 byte order mark is dropped.
func decoder(name string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		enc = unicode.UTF8BOM
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		enc = charmap.ISO8859_1
	case "ISO-8859-15", "LATIN9":
		enc = charmap.ISO8859_15
	case "WINDOWS-1252", "CP1252":
		enc = charmap.Windows1252
	default:
		return nil, eris.Errorf("unsupported encoding %q", name)
	}
	return enc.NewDecoder(), nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Ledger exports are ragged: section header rows carry one cell.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// extractHeaders extracts and merges headers from the CSV.
//
// MULTI-LINE HEADER HANDLING:
//   Row 1: "Factura", "",         "Importe"
//   Row 2: "Titulo",  "Cantidad", "Total"
//   Result: "Factura Titulo", "Cantidad", "Importe Total"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	headerRows := settings.HeaderRows
	if headerRows <= 0 {
		headerRows = 1
	}
	if len(allRows) < headerRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting (%d)", headerRows)
	}

	maxCols := 0
	for i := 0; i < headerRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < headerRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers), nil
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

// extractDataRows returns the rows from the data start row on, skipping
// rows whose cells are all blank.
func extractDataRows(allRows [][]string, settings config.CSVSettings) [][]string {
	startIndex := settings.DataStartRow - 1
	if startIndex < 0 {
		startIndex = max(settings.HeaderRows, 1)
	}
	if startIndex >= len(allRows) {
		return [][]string{}
	}

	dataRows := make([][]string, 0, len(allRows)-startIndex)
	for _, row := range allRows[startIndex:] {
		if table.IsRowEmpty(row) {
			continue
		}
		dataRows = append(dataRows, row)
	}
	return dataRows
}
