// =============================================================================
// Order/Invoice Reconciler - Pipeline Module
// =============================================================================
//
// This module orchestrates a single reconciliation run, from reading the two
// ledgers to writing the report.
//
// RUN PIPELINE:
//   1. Read the order and invoice ledgers (CSV or XLSX)
//   2. Apply the profile's transformation rules to raw cells
//   3. Load order lines and parse invoice lines
//   4. Reconcile under the selected match mode
//   5. Apply publisher discounts and total payables per country
//   6. Collect data quality warnings
//   7. Build and write the XLSX report
//
// A schema error (a required column that does not exist) aborts the run
// before anything is written. Warnings never abort a run.
//
// CONCURRENCY:
//   A Runner holds no per-run state; one Runner may serve many goroutines.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/csvparser"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/discount"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/ledger"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/report"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/table"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/transform"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/validation"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/xlsxparser"
)

// =============================================================================
// INPUT AND RESULT
// =============================================================================

// Input describes one run.
type Input struct {
	// RunID identifies the run; a random UUID is used when empty.
	RunID string

	OrderFile   string
	InvoiceFile string
	Profile     *config.Profile

	// Mode overrides the profile's match mode when set.
	Mode string

	// OutputPath is where the report is written. No report is written
	// when it is empty.
	OutputPath string
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Profile string
	Mode    reconcile.MatchMode

	Rows       []reconcile.Row
	Discounted []discount.Row
	Payable    []discount.CountryPayable
	Warnings   []validation.Warning
	Summary    reconcile.Summary

	// OutputFile is the written report, or "" when none was requested.
	OutputFile string

	Stats Stats
}

// Stats contains processing statistics.
type Stats struct {
	OrderRows    int
	InvoiceRows  int
	OrderLines   int
	InvoiceLines int
	Keys         int
	Warnings     int

	ProcessingTime time.Duration
}

// ReportData converts the result into report input.
func (r *Result) ReportData() report.Data {
	return report.Data{
		RunID:    r.RunID,
		Profile:  r.Profile,
		Mode:     r.Mode,
		Rows:     r.Discounted,
		Payable:  r.Payable,
		Warnings: r.Warnings,
		Summary:  r.Summary,
	}
}

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes reconciliation runs.
type Runner struct {
	cfg    *config.MainConfig
	logger *zap.Logger
}

// NewRunner creates a Runner. It logs through the global zap logger.
func NewRunner(cfg *config.MainConfig) *Runner {
	return &Runner{cfg: cfg, logger: zap.L().Named("pipeline")}
}

// Run executes the pipeline for in.
func (r *Runner) Run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	if in.Profile == nil {
		return nil, eris.New("no profile given")
	}

	res := &Result{RunID: in.RunID, Profile: in.Profile.ProfileCode}
	if res.RunID == "" {
		res.RunID = uuid.NewString()
	}
	log := r.logger.With(zap.String("run_id", res.RunID), zap.String("profile", res.Profile))

	modeName := in.Mode
	if modeName == "" {
		modeName = in.Profile.MatchMode
	}
	mode, err := reconcile.ParseMatchMode(modeName)
	if err != nil {
		return nil, err
	}
	res.Mode = mode

	discounts, err := in.Profile.DiscountTable()
	if err != nil {
		return nil, eris.Wrap(err, "invalid discount table")
	}

	// =========================================================================
	// STEP 1-2: READ AND TRANSFORM LEDGERS
	// =========================================================================

	orderTable, err := r.readLedger(ctx, in.OrderFile, in.Profile, config.TargetOrders)
	if err != nil {
		return nil, err
	}
	invoiceTable, err := r.readLedger(ctx, in.InvoiceFile, in.Profile, config.TargetInvoice)
	if err != nil {
		return nil, err
	}
	res.Stats.OrderRows = orderTable.Len()
	res.Stats.InvoiceRows = invoiceTable.Len()
	log.Debug("read ledgers",
		zap.String("orders", in.OrderFile), zap.Int("order_rows", orderTable.Len()),
		zap.String("invoice", in.InvoiceFile), zap.Int("invoice_rows", invoiceTable.Len()))

	// =========================================================================
	// STEP 3: LOAD LINES
	// =========================================================================

	orders, err := ledger.LoadOrders(orderTable, in.Profile.OrderColumns)
	if err != nil {
		return nil, schemaOrWrap(err, "failed to load orders")
	}
	invoices, err := ledger.ParseInvoice(invoiceTable, in.Profile.InvoiceColumns)
	if err != nil {
		return nil, schemaOrWrap(err, "failed to parse invoice")
	}
	res.Stats.OrderLines = len(orders)
	res.Stats.InvoiceLines = len(invoices)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// =========================================================================
	// STEP 4-6: RECONCILE, DISCOUNT, CHECK
	// =========================================================================

	res.Rows = reconcile.Reconcile(orders, invoices, mode)
	res.Summary = reconcile.Summarize(res.Rows)
	res.Discounted = discount.Apply(res.Rows, discounts)
	res.Payable = discount.PayableByCountry(res.Discounted)
	res.Warnings = append(validation.CheckOrders(orders), validation.CheckInvoice(invoices)...)

	res.Stats.Keys = len(res.Rows)
	res.Stats.Warnings = len(res.Warnings)
	for _, w := range res.Warnings {
		log.Debug("data quality warning", zap.String("warning", w.Error()))
	}

	// =========================================================================
	// STEP 7: REPORT
	// =========================================================================

	if in.OutputPath != "" {
		sheets := report.Build(res.ReportData(), report.Options{SheetNameMaxLength: r.sheetNameMaxLength()})
		if err := report.WriteXLSX(in.OutputPath, sheets); err != nil {
			return nil, err
		}
		res.OutputFile = in.OutputPath
		log.Info("wrote report", zap.String("path", in.OutputPath), zap.Int("sheets", len(sheets)))
	}

	res.Stats.ProcessingTime = time.Since(start)
	log.Info("run complete",
		zap.String("mode", mode.String()),
		zap.Int("keys", res.Stats.Keys),
		zap.Int("warnings", res.Stats.Warnings),
		zap.Duration("elapsed", res.Stats.ProcessingTime))
	return res, nil
}

func (r *Runner) readLedger(ctx context.Context, path string, p *config.Profile, target string) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, eris.Errorf("no %s file given", target)
	}

	t, err := LoadTable(path, p)
	if err != nil {
		return nil, err
	}

	tr, err := transform.NewTransformer(p.TransformationRules, target)
	if err != nil {
		return nil, err
	}
	if tr.Len() > 0 {
		r.logger.Debug("applying transformation rules", zap.String("ledger", target), zap.Int("rules", tr.Len()))
	}
	return tr.Apply(t)
}

func (r *Runner) sheetNameMaxLength() int {
	if r.cfg == nil {
		return 0
	}
	return r.cfg.SheetNameMaxLength
}

// LoadTable reads a ledger file with the reader its extension calls for.
func LoadTable(path string, p *config.Profile) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return csvparser.Parse(path, p.CSVSettings)
	case ".xlsx", ".xlsm":
		return xlsxparser.ReadSheet(path, p.XLSXSettings)
	default:
		return nil, eris.Errorf("unsupported ledger file type: %s", path)
	}
}

// schemaOrWrap passes schema errors through untouched so callers can match
// them, and wraps anything else.
func schemaOrWrap(err error, msg string) error {
	var se *ledger.SchemaError
	if errors.As(err, &se) {
		return se
	}
	return eris.Wrap(err, msg)
}

// AsSchemaError reports whether err is a schema error.
func AsSchemaError(err error) (*ledger.SchemaError, bool) {
	var se *ledger.SchemaError
	ok := errors.As(err, &se)
	return se, ok
}
