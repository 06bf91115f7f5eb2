package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
)

func rules(ws []Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Rule
	}
	return out
}

func TestCheckInvoice(t *testing.T) {
	lines := []ledger.InvoiceLine{
		{Country: "Chile", Publisher: "Ivrea", Title: "Naruto 1", QuantityInvoiced: 2,
			Key: ledger.Key{Country: "chile", Publisher: "ivrea", Title: "naruto 1"}},
		{Title: "Vagabond 1", QuantityInvoiced: 1, Key: ledger.Key{Title: "vagabond 1"}},
		{Country: "Perú", Publisher: "Ovni", Title: "Akira", QuantityInvoiced: 0, Malformed: 2,
			Key: ledger.Key{Country: "peru", Publisher: "ovni", Title: "akira"}},
	}

	ws := CheckInvoice(lines)
	assert.Equal(t, []string{
		RuleEmptyCountry, RuleEmptyPublisher,
		RuleNonPositiveQuantity, RuleUnparseablePrice,
	}, rules(ws))

	for _, w := range ws {
		assert.Equal(t, LedgerInvoice, w.Ledger)
	}
	assert.Equal(t, "Vagabond 1", ws[0].Title)
	assert.Equal(t, SeverityInfo, ws[3].Severity)
	assert.Contains(t, ws[3].Message, "2 row(s)")
}

func TestCheckOrders(t *testing.T) {
	lines := []ledger.OrderLine{
		{Country: "Chile", Publisher: "Ivrea", Title: "A", QuantityOrdered: 3,
			Key: ledger.Key{Country: "chile", Publisher: "ivrea", Title: "a"}},
		{Country: "Chile", Title: "B", QuantityOrdered: -1,
			Key: ledger.Key{Country: "chile", Title: "b"}},
		{Country: "Chile", Publisher: "Ivrea", QuantityOrdered: 0,
			Key: ledger.Key{Country: "chile", Publisher: "ivrea"}},
	}

	ws := CheckOrders(lines)
	assert.Equal(t, []string{
		RuleEmptyPublisher, RuleNegativeQuantity,
		RuleEmptyTitle, RuleNonPositiveQuantity,
	}, rules(ws))
	assert.Equal(t, LedgerOrders, ws[0].Ledger)
}

func TestCheck_CleanLedgersHaveNoWarnings(t *testing.T) {
	assert.Empty(t, CheckOrders(nil))
	assert.Empty(t, CheckInvoice([]ledger.InvoiceLine{{
		Country: "Chile", Publisher: "Ivrea", Title: "A", QuantityInvoiced: 1,
		Key: ledger.Key{Country: "chile", Publisher: "ivrea", Title: "a"},
	}}))
}

func TestWarningIsError(t *testing.T) {
	var err error = Warning{Severity: SeverityWarning, Ledger: "invoice", Rule: RuleEmptyCountry, Message: "m", Title: "T"}
	assert.Contains(t, err.Error(), "[WARNING] invoice/empty_country: m")
}

func TestSummarize(t *testing.T) {
	ws := []Warning{
		{Ledger: LedgerOrders, Rule: RuleEmptyTitle, Severity: SeverityWarning},
		{Ledger: LedgerInvoice, Rule: RuleEmptyCountry, Severity: SeverityWarning},
		{Ledger: LedgerInvoice, Rule: RuleEmptyCountry, Severity: SeverityWarning},
		{Ledger: LedgerInvoice, Rule: RuleUnparseablePrice, Severity: SeverityInfo},
	}

	got := Summarize(ws)
	require.Len(t, got, 3)
	assert.Equal(t, SummaryLine{Ledger: LedgerInvoice, Rule: RuleEmptyCountry, Severity: SeverityWarning, Count: 2}, got[0])
	assert.Equal(t, RuleUnparseablePrice, got[1].Rule)
	assert.Equal(t, LedgerOrders, got[2].Ledger)
	assert.Equal(t, "invoice: 2 line(s) with empty_country", got[0].String())

	assert.Empty(t, Summarize(nil))
}

func TestWriteWarningLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warnings.log")
	ws := []Warning{{Severity: SeverityWarning, Ledger: LedgerInvoice, Rule: RuleEmptyCountry, Message: "x"}}

	require.NoError(t, WriteWarningLog(ws, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1 warning(s)")
	assert.Contains(t, string(data), "1. [WARNING] invoice/empty_country")

	assert.Equal(t, "No data quality warnings.", FormatWarnings(nil))
	assert.Error(t, WriteWarningLog(ws, filepath.Join(t.TempDir(), "missing", "w.log")))
}
