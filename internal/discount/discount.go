// Package discount applies per-publisher discount percentages to reconciled
// rows and rolls the invoiced amounts up per country.
package discount

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/numeric"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/textnorm"
)

var hundred = decimal.NewFromInt(100)

// Table maps normalized publisher names to a discount percent in [0, 100].
// A Table is read-only once built and safe to share between runs.
type Table struct {
	percents map[string]float64
}

// NewTable builds a Table from publisher display names. Names that
// normalize to the same key must agree on the percent.
func NewTable(percents map[string]float64) (Table, error) {
	t := Table{percents: make(map[string]float64, len(percents))}
	for publisher, pct := range percents {
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return Table{}, fmt.Errorf("discount for %q must be between 0 and 100, got %v", publisher, pct)
		}
		k := textnorm.Normalize(publisher)
		if prev, ok := t.percents[k]; ok && prev != pct {
			return Table{}, fmt.Errorf("conflicting discounts for publisher %q: %v and %v", k, prev, pct)
		}
		t.percents[k] = pct
	}
	return t, nil
}

// Percent returns the discount for a publisher display name; unknown
// publishers get 0.
func (t Table) Percent(publisher string) float64 {
	return t.percents[textnorm.Normalize(publisher)]
}

// Len returns the number of publishers with a discount.
func (t Table) Len() int {
	return len(t.percents)
}

// Row is a reconciliation row with its discount applied.
type Row struct {
	reconcile.Row

	DiscountPercent     float64
	DiscountedUnitPrice float64
	DiscountedTotal     float64
}

// Apply returns discounted copies of rows. An unknown unit price gives
// unknown discounted values.
func Apply(rows []reconcile.Row, t Table) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		pct := t.Percent(r.Publisher)
		d := Row{Row: r, DiscountPercent: pct}

		if numeric.Missing(r.UnitPrice) {
			d.DiscountedUnitPrice = math.NaN()
			d.DiscountedTotal = math.NaN()
		} else {
			factor := hundred.Sub(decimal.NewFromFloat(pct)).Div(hundred)
			unit := decimal.NewFromFloat(r.UnitPrice).Mul(factor)
			d.DiscountedUnitPrice = unit.InexactFloat64()
			d.DiscountedTotal = unit.Mul(decimal.NewFromInt(int64(r.QuantityInvoiced))).InexactFloat64()
		}
		out[i] = d
	}
	return out
}

// CountryPayable is the invoiced amount owed for one country.
//
// DiscountedTotal covers only the DiscountedLines rows whose unit price is
// known; it is NaN when no row has one. Lines counts every row with a known
// invoiced or discounted amount.
type CountryPayable struct {
	Country         string
	InvoicedTotal   float64
	DiscountedTotal float64
	Lines           int
	DiscountedLines int
}

// Partial reports whether some lines have no discounted amount.
func (p CountryPayable) Partial() bool {
	return p.DiscountedLines < p.Lines
}

// MarshalJSON writes an unknown discounted total as null.
func (p CountryPayable) MarshalJSON() ([]byte, error) {
	var discounted *float64
	if !numeric.Missing(p.DiscountedTotal) {
		discounted = &p.DiscountedTotal
	}
	return json.Marshal(struct {
		Country         string   `json:"country"`
		InvoicedTotal   float64  `json:"invoiced_total"`
		DiscountedTotal *float64 `json:"discounted_total"`
		Lines           int      `json:"lines"`
		DiscountedLines int      `json:"discounted_lines"`
	}{p.Country, p.InvoicedTotal, discounted, p.Lines, p.DiscountedLines})
}

// PayableByCountry sums known invoiced and discounted totals per display
// country. Unknown amounts are skipped, never counted as zero; countries
// with no known amount are left out. The result is sorted by invoiced
// total, largest first.
func PayableByCountry(rows []Row) []CountryPayable {
	type acc struct {
		invoiced        decimal.Decimal
		discounted      decimal.Decimal
		lines           int
		discountedLines int
	}

	var (
		order []string
		byKey = make(map[string]*acc)
	)
	for _, r := range rows {
		rawKnown := !numeric.Missing(r.LineTotal)
		discKnown := !numeric.Missing(r.DiscountedTotal)
		if !rawKnown && !discKnown {
			continue
		}

		a, ok := byKey[r.Country]
		if !ok {
			a = &acc{}
			byKey[r.Country] = a
			order = append(order, r.Country)
		}
		if rawKnown {
			a.invoiced = a.invoiced.Add(decimal.NewFromFloat(r.LineTotal))
		}
		if discKnown {
			a.discounted = a.discounted.Add(decimal.NewFromFloat(r.DiscountedTotal))
			a.discountedLines++
		}
		a.lines++
	}

	out := make([]CountryPayable, 0, len(order))
	for _, c := range order {
		a := byKey[c]
		p := CountryPayable{
			Country:         c,
			InvoicedTotal:   a.invoiced.InexactFloat64(),
			DiscountedTotal: math.NaN(),
			Lines:           a.lines,
			DiscountedLines: a.discountedLines,
		}
		if a.discountedLines > 0 {
			p.DiscountedTotal = a.discounted.InexactFloat64()
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].InvoicedTotal != out[j].InvoicedTotal {
			return out[i].InvoicedTotal > out[j].InvoicedTotal
		}
		return out[i].Country < out[j].Country
	})
	return out
}
