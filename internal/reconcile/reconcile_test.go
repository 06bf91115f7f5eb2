package reconcile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/textnorm"
)

func key(country, publisher, title string) ledger.Key {
	return ledger.Key{
		Country:   textnorm.Normalize(country),
		Publisher: textnorm.Normalize(publisher),
		Title:     textnorm.Normalize(title),
	}
}

func order(country, publisher, title string, qty int) ledger.OrderLine {
	return ledger.OrderLine{
		Country: country, Publisher: publisher, Title: title, Week: "S1",
		QuantityOrdered: qty, Key: key(country, publisher, title),
	}
}

func invoice(country, publisher, title string, qty int, price float64) ledger.InvoiceLine {
	return ledger.InvoiceLine{
		Country: country, Publisher: publisher, Title: title,
		QuantityInvoiced: qty, UnitPrice: price, LineTotal: float64(qty) * price,
		Key: key(country, publisher, title),
	}
}

func byTitle(rows []Row) map[string]Row {
	out := make(map[string]Row, len(rows))
	for _, r := range rows {
		out[r.Key.Title] = r
	}
	return out
}

func TestReconcile_Short(t *testing.T) {
	rows := Reconcile(
		[]ledger.OrderLine{order("Perú", "Ivrea", "Naruto 1", 10)},
		[]ledger.InvoiceLine{invoice("peru", "IVREA", "naruto 1", 7, 12)},
		CountryTitle,
	)

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, StatusShort, r.Status)
	assert.Equal(t, 10, r.QuantityOrdered)
	assert.Equal(t, 7, r.QuantityInvoiced)
	assert.Equal(t, -3, r.QuantityDiff)
	assert.Equal(t, "peru", r.Country, "invoice display fields win")
	assert.Equal(t, "S1", r.Week)
	assert.InDelta(t, 84.0, r.LineTotal, 1e-9)
}

func TestReconcile_AllStatuses(t *testing.T) {
	orders := []ledger.OrderLine{
		order("Chile", "Ivrea", "Exact", 5),
		order("Chile", "Ivrea", "Short", 5),
		order("Chile", "Ivrea", "Over", 5),
		order("Chile", "Ivrea", "Missing", 5),
	}
	invoices := []ledger.InvoiceLine{
		invoice("Chile", "Ivrea", "Exact", 5, 1),
		invoice("Chile", "Ivrea", "Short", 2, 1),
		invoice("Chile", "Ivrea", "Over", 9, 1),
		invoice("Chile", "Ivrea", "Unordered", 1, 1),
	}

	got := byTitle(Reconcile(orders, invoices, CountryTitle))
	require.Len(t, got, 5)

	assert.Equal(t, StatusMatchedExact, got["exact"].Status)
	assert.Equal(t, StatusShort, got["short"].Status)
	assert.Equal(t, StatusOver, got["over"].Status)
	assert.Equal(t, StatusMissingFromInvoice, got["missing"].Status)
	assert.Equal(t, StatusUnorderedInInvoice, got["unordered"].Status)

	missing := got["missing"]
	assert.Equal(t, 0, missing.QuantityInvoiced)
	assert.Equal(t, -5, missing.QuantityDiff)
	assert.True(t, math.IsNaN(missing.UnitPrice))
	assert.True(t, math.IsNaN(missing.LineTotal))
	assert.False(t, missing.HasInvoice())

	unordered := got["unordered"]
	assert.Equal(t, 0, unordered.QuantityOrdered)
	assert.Equal(t, 1, unordered.QuantityDiff)
	assert.Equal(t, "", unordered.Week)
	assert.False(t, unordered.HasOrder())
}

func TestReconcile_CompletenessAndUniqueness(t *testing.T) {
	orders := []ledger.OrderLine{
		order("Chile", "Ivrea", "A", 1),
		order("Chile", "Ovni", "A", 2),
		order("Perú", "Ivrea", "B", 3),
		order("Perú", "Ivrea", "C", 4),
	}
	invoices := []ledger.InvoiceLine{
		invoice("Chile", "Panini", "A", 3, 1),
		invoice("Peru", "Ivrea", "C", 4, 2),
		invoice("Mexico", "Panini", "D", 1, 2),
	}

	for _, mode := range []MatchMode{CountryTitle, CountryPublisherTitle, TitleOnly} {
		t.Run(mode.String(), func(t *testing.T) {
			rows := Reconcile(orders, invoices, mode)

			want := map[ledger.Key]bool{}
			for _, o := range orders {
				want[mode.project(o.Key)] = true
			}
			for _, i := range invoices {
				want[mode.project(i.Key)] = true
			}

			seen := map[ledger.Key]int{}
			ordered, invoiced := 0, 0
			for _, r := range rows {
				seen[r.Key]++
				ordered += r.QuantityOrdered
				invoiced += r.QuantityInvoiced
				assert.Equal(t, r.QuantityInvoiced-r.QuantityOrdered, r.QuantityDiff)
			}
			assert.Len(t, seen, len(want))
			for k := range want {
				assert.Equal(t, 1, seen[k], "key %v", k)
			}
			assert.Equal(t, 10, ordered)
			assert.Equal(t, 8, invoiced)
		})
	}
}

func TestReconcile_ModesChangeTheJoin(t *testing.T) {
	orders := []ledger.OrderLine{order("Chile", "Ivrea", "Akira", 3)}
	invoices := []ledger.InvoiceLine{invoice("Chile", "Norma", "Akira", 3, 10)}

	rows := Reconcile(orders, invoices, CountryTitle)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusMatchedExact, rows[0].Status)
	assert.Equal(t, "Norma", rows[0].Publisher)

	rows = Reconcile(orders, invoices, CountryPublisherTitle)
	require.Len(t, rows, 2)

	invoices = []ledger.InvoiceLine{invoice("Perú", "Norma", "Akira", 3, 10)}
	rows = Reconcile(orders, invoices, TitleOnly)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusMatchedExact, rows[0].Status)
	assert.Equal(t, ledger.Key{Title: "akira"}, rows[0].Key)
}

func TestReconcile_TitleOnlyFoldsSameSide(t *testing.T) {
	orders := []ledger.OrderLine{
		order("Chile", "Ivrea", "Akira", 3),
		order("Perú", "Ivrea", "Akira", 2),
	}
	orders[1].Week = "S2"
	invoices := []ledger.InvoiceLine{
		invoice("Chile", "Ivrea", "Akira", 1, 10),
		invoice("Perú", "Ivrea", "Akira", 1, 30),
		invoice("México", "Ivrea", "Akira", 1, 20),
	}

	rows := Reconcile(orders, invoices, TitleOnly)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 5, r.QuantityOrdered)
	assert.Equal(t, 3, r.QuantityInvoiced)
	assert.Equal(t, StatusShort, r.Status)
	assert.Equal(t, "S1, S2", r.Week)
	assert.InDelta(t, 60.0, r.LineTotal, 1e-9)
	assert.InDelta(t, 20.0, r.UnitPrice, 1e-9)
	assert.Equal(t, "Chile", r.Country, "first-seen display values")
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	orders := []ledger.OrderLine{order("Chile", "Ivrea", "A", 1), order("Chile", "Ovni", "A", 2)}
	invoices := []ledger.InvoiceLine{invoice("Chile", "Ivrea", "A", 1, 5), invoice("Chile", "Ovni", "A", 1, 5)}
	origOrders := append([]ledger.OrderLine(nil), orders...)
	origInvoices := append([]ledger.InvoiceLine(nil), invoices...)

	Reconcile(orders, invoices, TitleOnly)

	assert.Equal(t, origOrders, orders)
	assert.Equal(t, origInvoices, invoices)
}

func TestReconcile_EmptyInputs(t *testing.T) {
	assert.Empty(t, Reconcile(nil, nil, CountryTitle))

	rows := Reconcile(nil, []ledger.InvoiceLine{invoice("Chile", "Ivrea", "A", 2, 1)}, CountryTitle)
	require.Len(t, rows, 1)
	assert.Equal(t, StatusUnorderedInInvoice, rows[0].Status)
}

func TestReconcile_SortedByKey(t *testing.T) {
	orders := []ledger.OrderLine{
		order("Perú", "Ivrea", "B", 1),
		order("Chile", "Ivrea", "Z", 1),
		order("Chile", "Ivrea", "A", 1),
	}
	rows := Reconcile(orders, nil, CountryTitle)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].Key.Title)
	assert.Equal(t, "z", rows[1].Key.Title)
	assert.Equal(t, "peru", rows[2].Key.Country)
}

func TestFirstPresent(t *testing.T) {
	assert.Equal(t, "b", FirstPresent("", "b", "c"))
	assert.Equal(t, "", FirstPresent("", ""))
	assert.Equal(t, 3, FirstPresent(0, 3))
}

func TestParseMatchMode(t *testing.T) {
	tests := []struct {
		in      string
		want    MatchMode
		wantErr bool
	}{
		{"", CountryTitle, false},
		{"country_title", CountryTitle, false},
		{" Country_Publisher_Title ", CountryPublisherTitle, false},
		{"title", TitleOnly, false},
		{"publisher", CountryTitle, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMatchMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), modeNames[got])
		})
	}
}

func TestViewsAndSummary(t *testing.T) {
	rows := []Row{
		{Status: StatusMatchedExact, QuantityOrdered: 2, QuantityInvoiced: 2},
		{Status: StatusShort, QuantityOrdered: 5, QuantityInvoiced: 1},
		{Status: StatusMissingFromInvoice, QuantityOrdered: 3},
		{Status: StatusOver, QuantityOrdered: 1, QuantityInvoiced: 4},
		{Status: StatusUnorderedInInvoice, QuantityInvoiced: 6},
		{Status: StatusUnorderedInInvoice, QuantityInvoiced: 1},
	}

	assert.Len(t, Matched(rows), 1)
	assert.Len(t, Shortfall(rows), 2)
	assert.Len(t, Overage(rows), 3)
	assert.NotNil(t, Matched(nil))

	s := Summarize(rows)
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 1, s.Matched)
	assert.Equal(t, 2, s.Shortfall)
	assert.Equal(t, 3, s.Overage)
	assert.Equal(t, 2, s.ByStatus[StatusUnorderedInInvoice])
	assert.Equal(t, 11, s.UnitsOrdered)
	assert.Equal(t, 14, s.UnitsInvoiced)
	assert.Equal(t, 4, s.OrderedKeys, "unordered keys have no order side")
	assert.Equal(t, 5, s.InvoicedKeys, "missing keys have no invoice side")
	assert.Len(t, s.ByStatus, len(Statuses))
}
