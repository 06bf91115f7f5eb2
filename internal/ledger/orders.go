package ledger

import (
	"strings"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/numeric"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/textnorm"
)

// LoadOrders maps a raw order table into order lines aggregated by identity
// key. Rows whose fields differ only in accents, case or spacing collapse
// into one line carrying the first-seen display values and the summed
// quantity.
//
// A mapped column missing from t yields a *SchemaError and no lines.
func LoadOrders(t *table.Table, cols OrderColumns) ([]OrderLine, error) {
	idx, err := resolve(t, []columnRef{
		{"country", cols.Country},
		{"week", cols.Week},
		{"publisher", cols.Publisher},
		{"title", cols.Title},
		{"quantity", cols.Quantity},
	})
	if err != nil {
		return nil, err
	}

	var (
		order  []Key
		groups = make(map[Key]*orderGroup)
	)
	for _, row := range t.Rows {
		line := OrderLine{
			Country:         strings.TrimSpace(t.Cell(row, idx["country"])),
			Publisher:       strings.TrimSpace(t.Cell(row, idx["publisher"])),
			Title:           strings.TrimSpace(t.Cell(row, idx["title"])),
			Week:            strings.TrimSpace(t.Cell(row, idx["week"])),
			QuantityOrdered: numeric.CoerceInt(t.Cell(row, idx["quantity"])),
		}
		line.Key = Key{
			Country:   textnorm.Normalize(line.Country),
			Publisher: textnorm.Normalize(line.Publisher),
			Title:     textnorm.Normalize(line.Title),
		}

		g, ok := groups[line.Key]
		if !ok {
			g = &orderGroup{line: line, seenWeeks: map[string]bool{}}
			g.line.Week = ""
			g.line.QuantityOrdered = 0
			groups[line.Key] = g
			order = append(order, line.Key)
		}
		g.add(line)
	}

	out := make([]OrderLine, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.line.Week = strings.Join(g.weeks, ", ")
		out = append(out, g.line)
	}
	return out, nil
}

type orderGroup struct {
	line      OrderLine
	weeks     []string
	seenWeeks map[string]bool
}

func (g *orderGroup) add(l OrderLine) {
	g.line.QuantityOrdered += l.QuantityOrdered
	if l.Week != "" && !g.seenWeeks[l.Week] {
		g.seenWeeks[l.Week] = true
		g.weeks = append(g.weeks, l.Week)
	}
}

// columnRef ties a logical field to its configured column name.
type columnRef struct {
	field  string
	column string
}

// resolve looks up every required column and fails on the first one that
// is unmapped or absent.
func resolve(t *table.Table, refs []columnRef) (map[string]int, error) {
	idx := make(map[string]int, len(refs))
	for _, r := range refs {
		if r.column == "" {
			return nil, &SchemaError{Field: r.field, Source: t.Source}
		}
		i := t.Index(r.column)
		if i < 0 {
			return nil, &SchemaError{Field: r.field, Column: r.column, Source: t.Source}
		}
		idx[r.field] = i
	}
	return idx, nil
}

// optional looks up a column that may be unmapped or absent; -1 means the
// field is not available.
func optional(t *table.Table, column string) int {
	if column == "" {
		return -1
	}
	return t.Index(column)
}
