package reconcile

// InMatched reports whether the status belongs to the matched view.
func (s Status) InMatched() bool {
	return s == StatusMatchedExact
}

// InShortfall reports whether the status belongs to the shortfall view:
// delivered less than ordered, including never invoiced.
func (s Status) InShortfall() bool {
	return s == StatusShort || s == StatusMissingFromInvoice
}

// InOverage reports whether the status belongs to the overage view:
// delivered more than ordered, including never ordered.
func (s Status) InOverage() bool {
	return s == StatusOver || s == StatusUnorderedInInvoice
}

// Matched returns the rows whose quantities agree on both sides.
func Matched(rows []Row) []Row {
	return filter(rows, Status.InMatched)
}

// Shortfall returns the rows where the supplier delivered less than ordered,
// including keys that were never invoiced.
func Shortfall(rows []Row) []Row {
	return filter(rows, Status.InShortfall)
}

// Overage returns the rows where the supplier delivered more than ordered,
// including keys that were never ordered.
func Overage(rows []Row) []Row {
	return filter(rows, Status.InOverage)
}

func filter(rows []Row, keep func(Status) bool) []Row {
	out := make([]Row, 0)
	for _, r := range rows {
		if keep(r.Status) {
			out = append(out, r)
		}
	}
	return out
}

// Summary counts rows per status and per view.
type Summary struct {
	Total     int            `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	Matched   int            `json:"matched"`
	Shortfall int            `json:"shortfall"`
	Overage   int            `json:"overage"`

	// OrderedKeys and InvoicedKeys count the keys each side contributed to.
	OrderedKeys  int `json:"ordered_keys"`
	InvoicedKeys int `json:"invoiced_keys"`

	// UnitsOrdered and UnitsInvoiced are the quantity totals over all rows.
	UnitsOrdered  int `json:"units_ordered"`
	UnitsInvoiced int `json:"units_invoiced"`
}

// Summarize counts rows per status.
func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows), ByStatus: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.ByStatus[st] = 0
	}
	for _, r := range rows {
		s.ByStatus[r.Status]++
		s.UnitsOrdered += r.QuantityOrdered
		s.UnitsInvoiced += r.QuantityInvoiced
		if r.HasOrder() {
			s.OrderedKeys++
		}
		if r.HasInvoice() {
			s.InvoicedKeys++
		}
		switch {
		case r.Status.InMatched():
			s.Matched++
		case r.Status.InShortfall():
			s.Shortfall++
		case r.Status.InOverage():
			s.Overage++
		}
	}
	return s
}
