package ledger

import (
	"strings"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/numeric"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/textnorm"
)

// =============================================================================
// PARSE STATE
// =============================================================================

// Context is the publisher/country section carried from a header row to the
// item rows below it. It lives only for one parse pass.
type Context struct {
	Publisher string
	Country   string
}

// RawInvoiceRow holds the cells of one invoice row that the parser reads.
// Country and Publisher are filled only in structured mode.
type RawInvoiceRow struct {
	Country   string
	Publisher string
	Title     string
	Quantity  string
	Price     string
	Total     string
}

// InvoiceRow is one resolved, not yet aggregated invoice item.
type InvoiceRow struct {
	Country   string
	Publisher string
	Title     string
	Quantity  int
	Price     float64
	Total     float64
	Malformed bool
}

// =============================================================================
// PARSER
// =============================================================================

// ParseInvoice recovers (country, publisher, title, quantity, price, total)
// items from an invoice table and aggregates them by identity key.
//
// In semi-structured mode rows must be in file order: item rows inherit the
// publisher and country of the closest section header above them.
// Items that never get a country or publisher are kept with empty keys;
// flagging them is up to the caller.
func ParseInvoice(t *table.Table, cols InvoiceColumns) ([]InvoiceLine, error) {
	refs := []columnRef{{"title", cols.Title}, {"quantity", cols.Quantity}}
	if cols.Structured() {
		refs = append(refs, columnRef{"country", cols.Country}, columnRef{"publisher", cols.Publisher})
	}
	idx, err := resolve(t, refs)
	if err != nil {
		return nil, err
	}
	priceCol := optional(t, cols.Price)
	totalCol := optional(t, cols.Total)

	var (
		rows []InvoiceRow
		ctx  Context
	)
	for _, r := range t.Rows {
		raw := RawInvoiceRow{
			Title:    t.Cell(r, idx["title"]),
			Quantity: t.Cell(r, idx["quantity"]),
			Price:    t.Cell(r, priceCol),
			Total:    t.Cell(r, totalCol),
		}

		var item *InvoiceRow
		if cols.Structured() {
			raw.Country = t.Cell(r, idx["country"])
			raw.Publisher = t.Cell(r, idx["publisher"])
			item = structuredRow(raw)
		} else {
			ctx, item = Step(ctx, raw)
		}
		if item != nil {
			rows = append(rows, *item)
		}
	}

	return AggregateInvoice(rows), nil
}

// Step advances the semi-structured parse by one row. It returns the
// context for the next row and the item this row produced, if any.
//
// Transitions:
//   - empty title: skipped, context unchanged
//   - "<publisher> <country>" title with empty or zero quantity: section
//     header, context replaced, no item
//   - "<title> | <publisher> <country>" title: item with publisher and
//     country taken from the cell, context unchanged
//   - anything else: item with publisher and country from the context
func Step(ctx Context, raw RawInvoiceRow) (Context, *InvoiceRow) {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return ctx, nil
	}

	if publisher, country, ok := matchHeader(title); ok {
		if strings.TrimSpace(raw.Quantity) == "" || numeric.CoerceInt(raw.Quantity) == 0 {
			return Context{Publisher: publisher, Country: country}, nil
		}
	}

	item := newRow(raw)
	item.Title = title
	item.Publisher = ctx.Publisher
	item.Country = ctx.Country

	if left, right, found := strings.Cut(title, "|"); found {
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left != "" {
			item.Title = left
		}
		if publisher, country, ok := matchHeader(right); ok {
			item.Publisher, item.Country = publisher, country
		} else if tokens := strings.Fields(right); len(tokens) >= 2 && IsCountry(tokens[len(tokens)-1]) {
			item.Country = tokens[len(tokens)-1]
			item.Publisher = strings.Join(tokens[:len(tokens)-1], " ")
		}
	}

	return ctx, item
}

func structuredRow(raw RawInvoiceRow) *InvoiceRow {
	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil
	}
	item := newRow(raw)
	item.Title = title
	item.Country = strings.TrimSpace(raw.Country)
	item.Publisher = strings.TrimSpace(raw.Publisher)
	return item
}

func newRow(raw RawInvoiceRow) *InvoiceRow {
	return &InvoiceRow{
		Quantity:  numeric.CoerceInt(raw.Quantity),
		Price:     numeric.CoerceFloat(raw.Price),
		Total:     numeric.CoerceFloat(raw.Total),
		Malformed: malformed(raw.Price) || malformed(raw.Total),
	}
}

// malformed reports a non-blank cell that does not read as a number.
func malformed(cell string) bool {
	return strings.TrimSpace(cell) != "" && !numeric.Parseable(cell)
}

// =============================================================================
// AGGREGATION
// =============================================================================

// AggregateInvoice canonicalizes country spellings, derives the normalized
// keys and groups rows by key: quantities and totals summed, unit price
// reduced by median. Display fields keep their first-seen values.
func AggregateInvoice(rows []InvoiceRow) []InvoiceLine {
	type group struct {
		line   InvoiceLine
		totals []float64
		prices []float64
	}

	var (
		order  []Key
		groups = make(map[Key]*group)
	)
	for _, r := range rows {
		country := CanonicalCountry(r.Country)
		key := Key{
			Country:   textnorm.Normalize(country),
			Publisher: textnorm.Normalize(r.Publisher),
			Title:     textnorm.Normalize(r.Title),
		}

		total := r.Total
		if numeric.Missing(total) && !numeric.Missing(r.Price) {
			total = float64(r.Quantity) * r.Price
		}

		g, ok := groups[key]
		if !ok {
			g = &group{line: InvoiceLine{
				Country:   country,
				Publisher: strings.TrimSpace(r.Publisher),
				Title:     r.Title,
				Key:       key,
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.line.QuantityInvoiced += r.Quantity
		g.totals = append(g.totals, total)
		g.prices = append(g.prices, r.Price)
		if r.Malformed {
			g.line.Malformed++
		}
	}

	out := make([]InvoiceLine, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.line.LineTotal = numeric.SumKnown(g.totals...)
		g.line.UnitPrice = numeric.Median(g.prices)
		out = append(out, g.line)
	}
	return out
}
