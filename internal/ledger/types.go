// =============================================================================
// Order/Invoice Reconciler - Ledger Types
// =============================================================================
//
// This package turns raw tables into typed, normalized and aggregated line
// sets for both ledgers:
//   - the order ledger ("Base"): what each country requested
//   - the invoice ledger ("Factura"): what the supplier shipped and billed
//
// Every line carries its display fields verbatim (first-seen spelling) plus
// the normalized key fields used for matching. Key fields are never shown.
//
// =============================================================================

package ledger

import (
	"fmt"
)

// =============================================================================
// LINE TYPES
// =============================================================================

// Key is the normalized identity of a line.
type Key struct {
	Country   string
	Publisher string
	Title     string
}

// OrderLine is one aggregated order ledger record.
type OrderLine struct {
	Country   string
	Publisher string
	Title     string

	// Week lists the distinct order weeks that were folded into this line,
	// in first-seen order, joined with ", ".
	Week string

	QuantityOrdered int

	Key Key
}

// InvoiceLine is one aggregated invoice ledger record.
//
// UnitPrice and LineTotal use NaN for "unknown". When a source row had a
// price but no explicit total, its total is quantity × price; explicit
// totals are trusted as-is.
type InvoiceLine struct {
	Country   string
	Publisher string
	Title     string

	QuantityInvoiced int
	UnitPrice        float64
	LineTotal        float64

	// Malformed counts source rows whose price or total cell held text that
	// could not be read as a number.
	Malformed int

	Key Key
}

// =============================================================================
// COLUMN MAPPINGS
// =============================================================================

// OrderColumns names the input columns feeding each order field.
// All five are required.
type OrderColumns struct {
	Country   string `yaml:"country"`
	Week      string `yaml:"week"`
	Publisher string `yaml:"publisher"`
	Title     string `yaml:"title"`
	Quantity  string `yaml:"quantity"`
}

// InvoiceColumns names the input columns feeding each invoice field.
//
// Title and Quantity are required. When both Country and Publisher are set
// the invoice is read in structured mode; otherwise country and publisher
// are recovered from section header rows and composite title cells.
type InvoiceColumns struct {
	Country   string `yaml:"country"`
	Publisher string `yaml:"publisher"`
	Title     string `yaml:"title"`
	Quantity  string `yaml:"quantity"`
	Price     string `yaml:"price"`
	Total     string `yaml:"total"`
}

// Structured reports whether the mapping names dedicated country and
// publisher columns.
func (c InvoiceColumns) Structured() bool {
	return c.Country != "" && c.Publisher != ""
}

// =============================================================================
// ERRORS
// =============================================================================

// SchemaError reports a required column mapping that points at a column the
// input table does not have. It is fatal for the run.
type SchemaError struct {
	// Field is the logical field being mapped ("title", "quantity", ...).
	Field string

	// Column is the configured column name that was not found.
	Column string

	// Source is the table the column was looked up in.
	Source string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("schema: no column mapped for required field %q", e.Field)
	}
	if e.Source != "" {
		return fmt.Sprintf("schema: column %q (field %s) not found in %s", e.Column, e.Field, e.Source)
	}
	return fmt.Sprintf("schema: column %q (field %s) not found", e.Column, e.Field)
}
