// =============================================================================
// Order/Invoice Reconciler - Cell Transformations
// =============================================================================
//
// This module applies a profile's transformation rules to the raw cells of
// a ledger table before the table is parsed. Typical uses:
//   - stripping supplier annotations from invoice titles
//   - mapping a supplier's own country codes to country names
//   - fixing a known publisher misspelling
//
// Rules are compiled once per run; applying them never mutates the input
// table.
//
// =============================================================================

package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the rules that target one ledger.
type Transformer struct {
	rules []rule
}

type rule struct {
	field   string
	actions []action
}

type action struct {
	config.TransformationAction
	re *regexp.Regexp
}

// NewTransformer compiles the rules whose Ledger equals target.
func NewTransformer(rules []config.TransformationRule, target string) (*Transformer, error) {
	t := &Transformer{}
	for i, r := range rules {
		if r.Ledger != target {
			continue
		}
		compiled := rule{field: r.Field}
		for j, a := range r.Actions {
			act := action{TransformationAction: a}
			if a.Type == config.ActionRegexReplace && a.Find != "" {
				re, err := regexp.Compile(a.Find)
				if err != nil {
					return nil, eris.Wrapf(err, "transformation_rules[%d].actions[%d]: invalid regex pattern", i, j)
				}
				act.re = re
			}
			compiled.actions = append(compiled.actions, act)
		}
		t.rules = append(t.rules, compiled)
	}
	return t, nil
}

// Len returns the number of compiled rules.
func (t *Transformer) Len() int {
	return len(t.rules)
}

// Apply returns a copy of tb with every rule applied to its column. A rule
// naming a column tb does not have is an error.
func (t *Transformer) Apply(tb *table.Table) (*table.Table, error) {
	if len(t.rules) == 0 {
		return tb, nil
	}

	rows := make([][]string, len(tb.Rows))
	for i, r := range tb.Rows {
		rows[i] = append([]string(nil), r...)
	}

	for _, r := range t.rules {
		col := tb.Index(r.field)
		if col < 0 {
			return nil, eris.Errorf("transformation rule field %q not found in %s", r.field, tb.Source)
		}
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			value := row[col]
			for _, a := range r.actions {
				var err error
				if value, err = a.apply(value); err != nil {
					return nil, eris.Wrapf(err, "transformation %q on %q failed", a.Type, r.field)
				}
			}
			row[col] = value
		}
	}

	out := table.New(append([]string(nil), tb.Headers...), rows)
	out.Source = tb.Source
	return out, nil
}

// =============================================================================
// TRANSFORMATION FUNCTIONS
// =============================================================================

// apply runs a single action on a cell value.
func (a action) apply(value string) (string, error) {
	switch a.Type {
	case config.ActionPrependString:
		// "12" -> "S12" with value "S"
		return a.Value + value, nil

	case config.ActionAppendString:
		return value + a.Value, nil

	case config.ActionTrim:
		return strings.TrimSpace(value), nil

	case config.ActionUppercase:
		return strings.ToUpper(value), nil

	case config.ActionLowercase:
		return strings.ToLower(value), nil

	case config.ActionReplace:
		if a.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, a.Find, a.Value), nil

	case config.ActionRegexReplace:
		// "Naruto 1 (reimpresion)" -> "Naruto 1" with find `\s*\(reimpresion\)`
		if a.re == nil {
			return value, nil
		}
		return a.re.ReplaceAllString(value, a.Value), nil

	case config.ActionLookup:
		// Unlisted values pass through.
		if mapped, ok := a.LookupTable[strings.TrimSpace(value)]; ok {
			return mapped, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type %q", a.Type)
	}
}
