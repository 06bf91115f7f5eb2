// =============================================================================
// Order/Invoice Reconciler - Data Quality Checks
// =============================================================================
//
// This package inspects the aggregated ledgers and reports data-quality
// warnings for lines that will reconcile poorly:
//   - empty country, publisher or title after parsing
//   - quantities that are zero or negative
//   - invoice rows whose price or total could not be read
//
// ERROR HANDLING:
//   - Warnings are collected, never thrown
//   - Each warning carries the ledger, the rule and the line identity
//   - A run with warnings still produces its full result
//
// =============================================================================

package validation

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
)

// =============================================================================
// WARNING TYPES
// =============================================================================

// Severity grades a warning.
type Severity string

const (
	// SeverityWarning marks a line that will likely mismatch.
	SeverityWarning Severity = "warning"

	// SeverityInfo marks a line worth a look that still reconciles.
	SeverityInfo Severity = "info"
)

// Ledger names the side a warning came from.
const (
	LedgerOrders  = "orders"
	LedgerInvoice = "invoice"
)

// Rule identifiers.
const (
	RuleEmptyCountry        = "empty_country"
	RuleEmptyPublisher      = "empty_publisher"
	RuleEmptyTitle          = "empty_title"
	RuleNonPositiveQuantity = "non_positive_quantity"
	RuleNegativeQuantity    = "negative_quantity"
	RuleUnparseablePrice    = "unparseable_price"
)

// Warning is one data-quality finding.
type Warning struct {
	Severity Severity `json:"severity"`
	Ledger   string   `json:"ledger"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`

	// Line identity, display values.
	Country   string `json:"country,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Title     string `json:"title,omitempty"`
}

// Error implements the error interface.
func (w Warning) Error() string {
	return fmt.Sprintf("[%s] %s/%s: %s (%s | %s | %s)",
		strings.ToUpper(string(w.Severity)),
		w.Ledger,
		w.Rule,
		w.Message,
		w.Country,
		w.Publisher,
		w.Title,
	)
}

// =============================================================================
// CHECKS
// =============================================================================

// CheckInvoice reports invoice lines that are missing identity fields, carry
// no positive quantity or had unreadable amounts.
func CheckInvoice(lines []ledger.InvoiceLine) []Warning {
	var out []Warning
	for _, l := range lines {
		add := func(sev Severity, rule, msg string) {
			out = append(out, Warning{
				Severity: sev, Ledger: LedgerInvoice, Rule: rule, Message: msg,
				Country: l.Country, Publisher: l.Publisher, Title: l.Title,
			})
		}

		checkIdentity(l.Key, add, "no section header above this item")
		if l.QuantityInvoiced <= 0 {
			add(SeverityWarning, RuleNonPositiveQuantity,
				fmt.Sprintf("invoiced quantity is %d", l.QuantityInvoiced))
		}
		if l.Malformed > 0 {
			add(SeverityInfo, RuleUnparseablePrice,
				fmt.Sprintf("%d row(s) had a price or total that is not a number", l.Malformed))
		}
	}
	return out
}

// CheckOrders reports order lines that are missing identity fields or carry
// a quantity that is not positive.
func CheckOrders(lines []ledger.OrderLine) []Warning {
	var out []Warning
	for _, l := range lines {
		add := func(sev Severity, rule, msg string) {
			out = append(out, Warning{
				Severity: sev, Ledger: LedgerOrders, Rule: rule, Message: msg,
				Country: l.Country, Publisher: l.Publisher, Title: l.Title,
			})
		}

		checkIdentity(l.Key, add, "cell is empty")
		switch {
		case l.QuantityOrdered < 0:
			add(SeverityWarning, RuleNegativeQuantity,
				fmt.Sprintf("ordered quantity is %d", l.QuantityOrdered))
		case l.QuantityOrdered == 0:
			add(SeverityInfo, RuleNonPositiveQuantity, "ordered quantity is 0 or unreadable")
		}
	}
	return out
}

func checkIdentity(k ledger.Key, add func(Severity, string, string), hint string) {
	if k.Country == "" {
		add(SeverityWarning, RuleEmptyCountry, "country is empty: "+hint)
	}
	if k.Publisher == "" {
		add(SeverityWarning, RuleEmptyPublisher, "publisher is empty: "+hint)
	}
	if k.Title == "" {
		add(SeverityWarning, RuleEmptyTitle, "title is empty")
	}
}

// =============================================================================
// SUMMARY
// =============================================================================

// SummaryLine counts the warnings of one rule on one ledger.
type SummaryLine struct {
	Ledger   string   `json:"ledger"`
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
}

// String renders the line for console output.
func (s SummaryLine) String() string {
	return fmt.Sprintf("%s: %d line(s) with %s", s.Ledger, s.Count, s.Rule)
}

// Summarize collapses warnings into one line per (ledger, rule), sorted by
// ledger then rule.
func Summarize(warnings []Warning) []SummaryLine {
	type groupKey struct{ ledger, rule string }

	counts := make(map[groupKey]*SummaryLine)
	for _, w := range warnings {
		k := groupKey{w.Ledger, w.Rule}
		s, ok := counts[k]
		if !ok {
			s = &SummaryLine{Ledger: w.Ledger, Rule: w.Rule, Severity: w.Severity}
			counts[k] = s
		}
		s.Count++
	}

	out := make([]SummaryLine, 0, len(counts))
	for _, s := range counts {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ledger != out[j].Ledger {
			return out[i].Ledger < out[j].Ledger
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// =============================================================================
// WARNING FORMATTING
// =============================================================================

// FormatWarnings formats warnings for display or logging.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return "No data quality warnings."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Data quality check found %d warning(s):\n\n", len(warnings)))
	for i, w := range warnings {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, w.Error()))
	}
	return builder.String()
}

// WriteWarningLog writes the formatted warnings to filePath.
func WriteWarningLog(warnings []Warning, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return eris.Wrapf(err, "failed to create warning log %s", filePath)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.WriteString(FormatWarnings(warnings)); err != nil {
		return eris.Wrap(err, "failed to write warning log")
	}
	if err := writer.Flush(); err != nil {
		return eris.Wrap(err, "failed to flush warning log")
	}
	return nil
}
