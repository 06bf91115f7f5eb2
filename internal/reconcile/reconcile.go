// =============================================================================
// Order/Invoice Reconciler - Reconciliation
// =============================================================================
//
// Reconcile performs a full outer join of the aggregated order ledger with
// the aggregated invoice ledger and labels every identity key with a status:
//
//   MATCHED_EXACT         present on both sides, same quantity
//   SHORT                 present on both sides, invoiced less than ordered
//   OVER                  present on both sides, invoiced more than ordered
//   MISSING_FROM_INVOICE  ordered, never invoiced
//   UNORDERED_IN_INVOICE  invoiced, never ordered
//
// =============================================================================

package reconcile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/numeric"
)

// =============================================================================
// STATUS AND MATCH MODE
// =============================================================================

// Status labels the outcome of reconciling one key.
type Status string

const (
	StatusMatchedExact       Status = "MATCHED_EXACT"
	StatusShort              Status = "SHORT"
	StatusOver               Status = "OVER"
	StatusMissingFromInvoice Status = "MISSING_FROM_INVOICE"
	StatusUnorderedInInvoice Status = "UNORDERED_IN_INVOICE"
)

// Statuses lists every status in report order.
var Statuses = []Status{
	StatusMatchedExact,
	StatusShort,
	StatusOver,
	StatusMissingFromInvoice,
	StatusUnorderedInInvoice,
}

// MatchMode selects which key fields take part in the join.
type MatchMode int

const (
	// CountryTitle joins on (country, title). Publisher spellings often
	// differ between the two ledgers, so it is left out by default.
	CountryTitle MatchMode = iota

	// CountryPublisherTitle joins on the full identity key.
	CountryPublisherTitle

	// TitleOnly joins on the title alone.
	TitleOnly
)

var modeNames = map[MatchMode]string{
	CountryTitle:          "country_title",
	CountryPublisherTitle: "country_publisher_title",
	TitleOnly:             "title",
}

// String returns the configuration name of the mode.
func (m MatchMode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("MatchMode(%d)", int(m))
}

// ParseMatchMode reads a mode name as written in profiles and flags. An
// empty string selects the default.
func ParseMatchMode(s string) (MatchMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return CountryTitle, nil
	}
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return CountryTitle, fmt.Errorf("unknown match mode %q (want country_title, country_publisher_title or title)", s)
}

// project reduces a full identity key to the fields the mode joins on.
func (m MatchMode) project(k ledger.Key) ledger.Key {
	switch m {
	case CountryPublisherTitle:
		return k
	case TitleOnly:
		return ledger.Key{Title: k.Title}
	default:
		return ledger.Key{Country: k.Country, Title: k.Title}
	}
}

// =============================================================================
// ROW
// =============================================================================

// Row is one reconciled key. Rows are plain values; nothing downstream
// mutates them.
type Row struct {
	Country   string
	Publisher string
	Title     string

	// Week is the order-side week list, empty for unordered items.
	Week string

	QuantityOrdered  int
	QuantityInvoiced int
	QuantityDiff     int

	// UnitPrice and LineTotal come from the invoice side; NaN when the key
	// was never invoiced or the invoice carried no amount.
	UnitPrice float64
	LineTotal float64

	// Malformed counts invoice rows with unreadable price or total cells.
	Malformed int

	Status Status

	// Key is the join key under the mode used.
	Key ledger.Key
}

// HasOrder reports whether the order side contributed to the row.
func (r Row) HasOrder() bool {
	return r.Status != StatusUnorderedInInvoice
}

// HasInvoice reports whether the invoice side contributed to the row.
func (r Row) HasInvoice() bool {
	return r.Status != StatusMissingFromInvoice
}

// FirstPresent returns the first value that is not the zero value of T, or
// the zero value when all are.
func FirstPresent[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// =============================================================================
// RECONCILE
// =============================================================================

// Reconcile joins orders and invoices on the key selected by mode and
// returns exactly one row per distinct key found on either side. Lines of
// one side that share a key under mode are folded before the join.
//
// Output is sorted by key. Inputs are not modified.
func Reconcile(orders []ledger.OrderLine, invoices []ledger.InvoiceLine, mode MatchMode) []Row {
	orderSide, orderKeys := foldOrders(orders, mode)
	invoiceSide, invoiceKeys := foldInvoices(invoices, mode)

	keys := append([]ledger.Key(nil), orderKeys...)
	for _, k := range invoiceKeys {
		if _, ok := orderSide[k]; !ok {
			keys = append(keys, k)
		}
	}

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		o, hasOrder := orderSide[k]
		inv, hasInvoice := invoiceSide[k]
		rows = append(rows, join(k, o, hasOrder, inv, hasInvoice))
	}

	sort.Slice(rows, func(i, j int) bool { return less(rows[i].Key, rows[j].Key) })
	return rows
}

func join(k ledger.Key, o *ledger.OrderLine, hasOrder bool, inv *invoiceFold, hasInvoice bool) Row {
	var (
		ord ledger.OrderLine
		in  ledger.InvoiceLine
	)
	if hasOrder {
		ord = *o
	}
	if hasInvoice {
		in = inv.line
	} else {
		in.UnitPrice = math.NaN()
		in.LineTotal = math.NaN()
	}

	r := Row{
		Country:          FirstPresent(in.Country, ord.Country),
		Publisher:        FirstPresent(in.Publisher, ord.Publisher),
		Title:            FirstPresent(in.Title, ord.Title),
		Week:             ord.Week,
		QuantityOrdered:  ord.QuantityOrdered,
		QuantityInvoiced: in.QuantityInvoiced,
		UnitPrice:        in.UnitPrice,
		LineTotal:        in.LineTotal,
		Malformed:        in.Malformed,
		Key:              k,
	}
	r.QuantityDiff = r.QuantityInvoiced - r.QuantityOrdered
	r.Status = classify(hasOrder, hasInvoice, r.QuantityDiff)
	return r
}

func classify(hasOrder, hasInvoice bool, diff int) Status {
	switch {
	case hasOrder && hasInvoice && diff == 0:
		return StatusMatchedExact
	case hasOrder && hasInvoice && diff < 0:
		return StatusShort
	case hasOrder && hasInvoice:
		return StatusOver
	case hasOrder:
		return StatusMissingFromInvoice
	default:
		return StatusUnorderedInInvoice
	}
}

func less(a, b ledger.Key) bool {
	if a.Country != b.Country {
		return a.Country < b.Country
	}
	if a.Publisher != b.Publisher {
		return a.Publisher < b.Publisher
	}
	return a.Title < b.Title
}

// =============================================================================
// SAME-SIDE FOLDING
// =============================================================================

func foldOrders(lines []ledger.OrderLine, mode MatchMode) (map[ledger.Key]*ledger.OrderLine, []ledger.Key) {
	var (
		keys  []ledger.Key
		out   = make(map[ledger.Key]*ledger.OrderLine, len(lines))
		weeks = make(map[ledger.Key][]string)
	)
	for _, l := range lines {
		k := mode.project(l.Key)
		weeks[k] = appendWeeks(weeks[k], l.Week)

		if cur, ok := out[k]; ok {
			cur.QuantityOrdered += l.QuantityOrdered
			continue
		}
		cp := l
		out[k] = &cp
		keys = append(keys, k)
	}
	for k, l := range out {
		l.Week = strings.Join(weeks[k], ", ")
	}
	return out, keys
}

func appendWeeks(seen []string, list string) []string {
	for _, w := range strings.Split(list, ",") {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		dup := false
		for _, s := range seen {
			if s == w {
				dup = true
				break
			}
		}
		if !dup {
			seen = append(seen, w)
		}
	}
	return seen
}

type invoiceFold struct {
	line   ledger.InvoiceLine
	totals []float64
	prices []float64
}

func foldInvoices(lines []ledger.InvoiceLine, mode MatchMode) (map[ledger.Key]*invoiceFold, []ledger.Key) {
	var (
		keys []ledger.Key
		out  = make(map[ledger.Key]*invoiceFold, len(lines))
	)
	for _, l := range lines {
		k := mode.project(l.Key)
		f, ok := out[k]
		if !ok {
			f = &invoiceFold{line: l}
			f.line.QuantityInvoiced = 0
			f.line.Malformed = 0
			out[k] = f
			keys = append(keys, k)
		}
		f.line.QuantityInvoiced += l.QuantityInvoiced
		f.line.Malformed += l.Malformed
		f.totals = append(f.totals, l.LineTotal)
		f.prices = append(f.prices, l.UnitPrice)
	}
	for _, f := range out {
		f.line.LineTotal = numeric.SumKnown(f.totals...)
		f.line.UnitPrice = numeric.Median(f.prices)
	}
	return out, keys
}
