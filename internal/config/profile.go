package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/discount"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
)

// =============================================================================
// PROFILE STRUCTURE
// =============================================================================

// Profile describes how to read and reconcile one supplier's ledgers:
// which files belong to it, how to parse them, which columns hold which
// field, how to join them and which discounts apply.
type Profile struct {
	ProfileName string `yaml:"profile_name"`
	ProfileCode string `yaml:"profile_code"`

	// OrderPatterns and InvoicePatterns are glob patterns matched against
	// file names (case-insensitive) to pick the two ledgers of a run.
	//
	// Examples:
	//   - "base*.xlsx"
	//   - "*pedido*"
	//   - "factura_*.csv"
	OrderPatterns   []string `yaml:"order_patterns"`
	InvoicePatterns []string `yaml:"invoice_patterns"`

	CSVSettings  CSVSettings  `yaml:"csv_settings"`
	XLSXSettings XLSXSettings `yaml:"xlsx_settings"`

	OrderColumns   ledger.OrderColumns   `yaml:"order_columns"`
	InvoiceColumns ledger.InvoiceColumns `yaml:"invoice_columns"`

	// MatchMode is one of country_title (default),
	// country_publisher_title or title.
	MatchMode string `yaml:"match_mode"`

	// Discounts maps publisher names to a discount percent in [0, 100].
	Discounts map[string]float64 `yaml:"discounts"`

	// TransformationRules are applied to raw cells before parsing. Rules
	// name the ledger they target ("orders" or "invoice").
	TransformationRules []TransformationRule `yaml:"transformation_rules"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter separates fields. Common values: ",", ";", "|", "\t".
	// Default: ";"
	Delimiter string `yaml:"delimiter"`

	// HeaderRows is the number of header rows; multi-row headers are joined
	// with a space per column.
	// Default: 1
	HeaderRows int `yaml:"header_rows"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row"`

	// Encoding is the file character encoding: UTF-8, ISO-8859-1,
	// Windows-1252.
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// XLSXSettings contains settings for reading workbooks.
type XLSXSettings struct {
	// SheetName selects the sheet; empty means the first sheet.
	SheetName string `yaml:"sheet_name"`

	// HeaderRow is the 1-based row holding column names.
	// Default: 1
	HeaderRow int `yaml:"header_row"`
}

// =============================================================================
// TRANSFORMATION RULE STRUCTURE
// =============================================================================

// Ledger targets for transformation rules.
const (
	TargetOrders  = "orders"
	TargetInvoice = "invoice"
)

// Supported transformation action types.
const (
	ActionTrim          = "trim"
	ActionUppercase     = "uppercase"
	ActionLowercase     = "lowercase"
	ActionReplace       = "replace"
	ActionRegexReplace  = "regex_replace"
	ActionPrependString = "prepend_string"
	ActionAppendString  = "append_string"
	ActionLookup        = "lookup"
)

var actionTypes = map[string]bool{
	ActionTrim: true, ActionUppercase: true, ActionLowercase: true,
	ActionReplace: true, ActionRegexReplace: true,
	ActionPrependString: true, ActionAppendString: true, ActionLookup: true,
}

// TransformationRule applies a list of actions to one column of one ledger.
type TransformationRule struct {
	// Ledger is "orders" or "invoice".
	Ledger string `yaml:"ledger"`

	// Field is the column header in the input file.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is one of trim, uppercase, lowercase, replace, regex_replace,
	// prepend_string, append_string, lookup.
	Type string `yaml:"type"`

	// Value is the replacement (replace, regex_replace) or the string to
	// add (prepend_string, append_string).
	Value string `yaml:"value"`

	// Find is the substring or pattern for replace and regex_replace.
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values. Unlisted values pass
	// through unchanged.
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// PROFILE LOADING
// =============================================================================

// LoadProfiles loads every *.yaml and *.yml profile in dir, keyed by
// profile code (file name when the code is empty).
func LoadProfiles(dir string) (map[string]*Profile, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, eris.Wrap(err, "failed to list profile files")
	}
	ymlFiles, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, eris.Wrap(err, "failed to list profile files")
	}
	files = append(files, ymlFiles...)

	profiles := make(map[string]*Profile, len(files))
	for _, file := range files {
		p, err := LoadProfile(file)
		if err != nil {
			return nil, err
		}

		key := p.ProfileCode
		if key == "" {
			key = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			p.ProfileCode = key
		}
		if _, dup := profiles[key]; dup {
			return nil, eris.Errorf("duplicate profile code %q in %s", key, file)
		}
		profiles[key] = p
	}
	return profiles, nil
}

// LoadProfile reads, defaults and validates a single profile file.
func LoadProfile(filePath string) (*Profile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read profile %s", filePath)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "failed to parse profile %s", filePath)
	}

	applyProfileDefaults(&p)
	if err := ValidateProfile(&p); err != nil {
		return nil, eris.Wrapf(err, "invalid profile %s", filePath)
	}
	return &p, nil
}

// DefaultProfile returns the built-in profile used when no profile file is
// selected: Spanish column names, semi-structured invoice.
func DefaultProfile() *Profile {
	p := &Profile{
		ProfileName: "Default",
		ProfileCode: "default",
		OrderColumns: ledger.OrderColumns{
			Country:   "Pais",
			Week:      "Semana",
			Publisher: "Editorial",
			Title:     "Nombre",
			Quantity:  "Cantidad",
		},
		InvoiceColumns: ledger.InvoiceColumns{
			Title:    "Nombre",
			Quantity: "Cantidad",
			Price:    "PVP",
			Total:    "Total",
		},
	}
	applyProfileDefaults(p)
	return p
}

// applyProfileDefaults sets default values for unset profile options.
func applyProfileDefaults(p *Profile) {
	if p.CSVSettings.Delimiter == "" {
		p.CSVSettings.Delimiter = ";"
	}
	if p.CSVSettings.HeaderRows == 0 {
		p.CSVSettings.HeaderRows = 1
	}
	if p.CSVSettings.DataStartRow == 0 {
		p.CSVSettings.DataStartRow = p.CSVSettings.HeaderRows + 1
	}
	if p.CSVSettings.Encoding == "" {
		p.CSVSettings.Encoding = "UTF-8"
	}
	if p.XLSXSettings.HeaderRow == 0 {
		p.XLSXSettings.HeaderRow = 1
	}
	if p.MatchMode == "" {
		p.MatchMode = reconcile.CountryTitle.String()
	}
	if len(p.OrderPatterns) == 0 {
		p.OrderPatterns = []string{"*base*", "*pedido*", "*order*"}
	}
	if len(p.InvoicePatterns) == 0 {
		p.InvoicePatterns = []string{"*factura*", "*invoice*"}
	}
}

// =============================================================================
// PROFILE VALIDATION
// =============================================================================

// ValidateProfile checks the column mappings, match mode, discounts and
// transformation rules. All problems are reported together.
func ValidateProfile(p *Profile) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	oc := p.OrderColumns
	for field, col := range map[string]string{
		"country": oc.Country, "week": oc.Week, "publisher": oc.Publisher,
		"title": oc.Title, "quantity": oc.Quantity,
	} {
		if strings.TrimSpace(col) == "" {
			add("order_columns.%s is required", field)
		}
	}

	ic := p.InvoiceColumns
	if strings.TrimSpace(ic.Title) == "" {
		add("invoice_columns.title is required")
	}
	if strings.TrimSpace(ic.Quantity) == "" {
		add("invoice_columns.quantity is required")
	}
	if (ic.Country == "") != (ic.Publisher == "") {
		add("invoice_columns.country and invoice_columns.publisher must be set together")
	}

	if _, err := reconcile.ParseMatchMode(p.MatchMode); err != nil {
		add("match_mode: %v", err)
	}
	if _, err := discount.NewTable(p.Discounts); err != nil {
		add("discounts: %v", err)
	}
	if p.CSVSettings.DataStartRow <= p.CSVSettings.HeaderRows {
		add("csv_settings.data_start_row must come after the header rows")
	}

	for i, rule := range p.TransformationRules {
		if rule.Ledger != TargetOrders && rule.Ledger != TargetInvoice {
			add("transformation_rules[%d].ledger must be %q or %q", i, TargetOrders, TargetInvoice)
		}
		if rule.Field == "" {
			add("transformation_rules[%d].field is required", i)
		}
		for j, a := range rule.Actions {
			if !actionTypes[a.Type] {
				add("transformation_rules[%d].actions[%d]: unknown type %q", i, j, a.Type)
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return eris.New(strings.Join(problems, "; "))
	}
	return nil
}

// =============================================================================
// FILE MATCHING
// =============================================================================

// MatchesOrder reports whether fileName looks like this profile's order
// ledger.
func (p *Profile) MatchesOrder(fileName string) bool {
	return matchAny(p.OrderPatterns, fileName)
}

// MatchesInvoice reports whether fileName looks like this profile's
// invoice ledger.
func (p *Profile) MatchesInvoice(fileName string) bool {
	return matchAny(p.InvoicePatterns, fileName)
}

func matchAny(patterns []string, fileName string) bool {
	name := strings.ToLower(filepath.Base(fileName))
	for _, pattern := range patterns {
		if ok, err := filepath.Match(strings.ToLower(pattern), name); err == nil && ok {
			return true
		}
	}
	return false
}

// DiscountTable builds the profile's discount table.
func (p *Profile) DiscountTable() (discount.Table, error) {
	return discount.NewTable(p.Discounts)
}

// Mode returns the parsed match mode.
func (p *Profile) Mode() (reconcile.MatchMode, error) {
	return reconcile.ParseMatchMode(p.MatchMode)
}
