// =============================================================================
// Order/Invoice Reconciler - Report Assembly
// =============================================================================
//
// This module turns a reconciliation result into the named sheets of the
// output workbook and the console summary.
//
// SHEETS (in order):
//   Full_Reconciliation  every reconciled key
//   Matched              MATCHED_EXACT
//   Shortfall_Missing    SHORT and MISSING_FROM_INVOICE
//   Overage_Unordered    OVER and UNORDERED_IN_INVOICE
//   Payable_By_Country   only when some invoiced amount is known
//   Warnings             only when data quality warnings exist
//
// Unknown amounts (NaN) are written as empty cells.
//
// =============================================================================

package report

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/discount"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/validation"
)

// Sheet names before truncation.
const (
	SheetFull      = "Full_Reconciliation"
	SheetMatched   = "Matched"
	SheetShortfall = "Shortfall_Missing"
	SheetOverage   = "Overage_Unordered"
	SheetPayable   = "Payable_By_Country"
	SheetWarnings  = "Warnings"
)

// =============================================================================
// REPORT STRUCTURES
// =============================================================================

// Data is everything a report is built from.
type Data struct {
	RunID    string
	Profile  string
	Mode     reconcile.MatchMode
	Rows     []discount.Row
	Payable  []discount.CountryPayable
	Warnings []validation.Warning
	Summary  reconcile.Summary
}

// Sheet is one named table of the output workbook. Cells hold string, int
// or float64 values; nil is an empty cell.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Options controls report assembly.
type Options struct {
	// SheetNameMaxLength caps sheet names. Default: 31
	SheetNameMaxLength int
}

// DefaultOptions returns the default report options.
func DefaultOptions() Options {
	return Options{SheetNameMaxLength: 31}
}

var rowHeaders = []string{
	"Country", "Publisher", "Title", "Week",
	"Qty Ordered", "Qty Invoiced", "Qty Diff",
	"Unit Price", "Line Total",
	"Discount %", "Discounted Unit Price", "Discounted Total",
	"Status",
}

// =============================================================================
// BUILD
// =============================================================================

// Build assembles the ordered sheets for d.
func Build(d Data, opts Options) []Sheet {
	if opts.SheetNameMaxLength <= 0 {
		opts.SheetNameMaxLength = DefaultOptions().SheetNameMaxLength
	}

	sheets := []Sheet{
		rowSheet(SheetFull, d.Rows, nil),
		rowSheet(SheetMatched, d.Rows, reconcile.Status.InMatched),
		rowSheet(SheetShortfall, d.Rows, reconcile.Status.InShortfall),
		rowSheet(SheetOverage, d.Rows, reconcile.Status.InOverage),
	}
	if len(d.Payable) > 0 {
		sheets = append(sheets, payableSheet(d.Payable))
	}
	if len(d.Warnings) > 0 {
		sheets = append(sheets, warningSheet(d.Warnings))
	}

	used := make(map[string]bool, len(sheets))
	for i := range sheets {
		sheets[i].Name = uniqueName(sheets[i].Name, opts.SheetNameMaxLength, used)
	}
	return sheets
}

func rowSheet(name string, rows []discount.Row, keep func(reconcile.Status) bool) Sheet {
	s := Sheet{Name: name, Headers: rowHeaders, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		if keep != nil && !keep(r.Status) {
			continue
		}
		s.Rows = append(s.Rows, []any{
			r.Country, r.Publisher, r.Title, r.Week,
			r.QuantityOrdered, r.QuantityInvoiced, r.QuantityDiff,
			amount(r.UnitPrice), amount(r.LineTotal),
			r.DiscountPercent, amount(r.DiscountedUnitPrice), amount(r.DiscountedTotal),
			string(r.Status),
		})
	}
	return s
}

func payableSheet(payable []discount.CountryPayable) Sheet {
	s := Sheet{
		Name:    SheetPayable,
		Headers: []string{"Country", "Invoiced Total", "Discounted Total", "Lines", "Discounted Lines"},
		Rows:    make([][]any, 0, len(payable)),
	}
	for _, p := range payable {
		s.Rows = append(s.Rows, []any{p.Country, p.InvoicedTotal, amount(p.DiscountedTotal), p.Lines, p.DiscountedLines})
	}
	return s
}

func warningSheet(warnings []validation.Warning) Sheet {
	s := Sheet{
		Name:    SheetWarnings,
		Headers: []string{"Severity", "Ledger", "Rule", "Country", "Publisher", "Title", "Message"},
		Rows:    make([][]any, 0, len(warnings)),
	}
	for _, w := range warnings {
		s.Rows = append(s.Rows, []any{string(w.Severity), w.Ledger, w.Rule, w.Country, w.Publisher, w.Title, w.Message})
	}
	return s
}

// amount maps unknown values to an empty cell.
func amount(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// uniqueName truncates name to limit runes and, if the result is taken,
// replaces its tail with a counter.
func uniqueName(name string, limit int, used map[string]bool) string {
	candidate := truncate(name, limit)
	for n := 2; used[candidate]; n++ {
		suffix := fmt.Sprintf("~%d", n)
		candidate = truncate(name, limit-utf8.RuneCountInString(suffix)) + suffix
	}
	used[candidate] = true
	return candidate
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// =============================================================================
// CONSOLE SUMMARY
// =============================================================================

// FormatSummary renders the run summary shown on the console.
func FormatSummary(d Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run %s  profile=%s  match=%s\n", d.RunID, d.Profile, d.Mode)
	fmt.Fprintf(&b, "Keys reconciled: %d  (ordered %d units, invoiced %d units)\n",
		d.Summary.Total, d.Summary.UnitsOrdered, d.Summary.UnitsInvoiced)
	fmt.Fprintf(&b, "Keys per side: %d ordered, %d invoiced\n", d.Summary.OrderedKeys, d.Summary.InvoicedKeys)
	for _, st := range reconcile.Statuses {
		fmt.Fprintf(&b, "  %-22s %6d\n", st, d.Summary.ByStatus[st])
	}

	if len(d.Payable) > 0 {
		b.WriteString("\nPayable by country:\n")
		fmt.Fprintf(&b, "  %-16s %14s %16s %6s\n", "Country", "Invoiced", "Discounted", "Lines")
		partial := 0
		for _, p := range d.Payable {
			discounted := "n/a"
			if !math.IsNaN(p.DiscountedTotal) {
				discounted = fmt.Sprintf("%.2f", p.DiscountedTotal)
			}
			fmt.Fprintf(&b, "  %-16s %14.2f %16s %6d\n", p.Country, p.InvoicedTotal, discounted, p.Lines)
			if p.Partial() {
				partial++
			}
		}
		if partial > 0 {
			fmt.Fprintf(&b, "  %d country(ies) have lines without a unit price; their discounted totals are partial or n/a.\n", partial)
		}
	} else {
		b.WriteString("\nNo invoiced amounts available: map a price or total column to compute payables.\n")
	}

	if len(d.Warnings) > 0 {
		fmt.Fprintf(&b, "\nData quality warnings (%d):\n", len(d.Warnings))
		for _, s := range validation.Summarize(d.Warnings) {
			fmt.Fprintf(&b, "  %s\n", s)
		}
	}
	return b.String()
}
