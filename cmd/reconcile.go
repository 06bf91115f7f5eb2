// =============================================================================
// Order/Invoice Reconciler - Reconcile Command
// =============================================================================
//
// COMMAND USAGE:
//   reconciler reconcile --orders FILE --invoice FILE [flags]
//
// FLAGS:
//   --profile : Profile code (default: built-in profile)
//   --mode    : Match mode override (country_title, country_publisher_title, title)
//   --output  : Report path (default: output_dir/output_name_format)
//   --json    : Print the result as JSON instead of the text summary
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/discount"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/pipeline"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/report"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/validation"
	"github.com/ginjaninja78/order-invoice-reconciler/pkg/utils"
)

var (
	ordersFile  string
	invoiceFile string
	profileCode string
	matchMode   string
	outputPath  string
	jsonOutput  bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile one order ledger against one invoice",
	Long: `Reads the order ledger and the invoice, reconciles them under the selected
match mode, prints the status summary, the payable total per country and any
data quality warnings, and writes the XLSX report.

A required column that is missing from either ledger aborts the run and no
report is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd)
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&ordersFile, "orders", "", "Order ledger (CSV or XLSX)")
	reconcileCmd.Flags().StringVar(&invoiceFile, "invoice", "", "Supplier invoice (CSV or XLSX)")
	reconcileCmd.Flags().StringVar(&profileCode, "profile", "", "Profile code")
	reconcileCmd.Flags().StringVar(&matchMode, "mode", "", "Match mode: country_title, country_publisher_title or title")
	reconcileCmd.Flags().StringVar(&outputPath, "output", "", "Report path")
	reconcileCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	_ = reconcileCmd.MarkFlagRequired("orders")
	_ = reconcileCmd.MarkFlagRequired("invoice")
}

// runResult is the JSON shape printed with --json.
type runResult struct {
	RunID      string                    `json:"run_id"`
	Profile    string                    `json:"profile"`
	Mode       string                    `json:"mode"`
	OutputFile string                    `json:"output_file"`
	Summary    reconcile.Summary         `json:"summary"`
	Payable    []discount.CountryPayable `json:"payable"`
	Warnings   []validation.Warning      `json:"warnings"`
	Issues     []validation.SummaryLine  `json:"warning_summary"`
}

func runReconcile(cmd *cobra.Command) error {
	profile, err := selectProfile(profileCode)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	out := outputPath
	if out == "" {
		run := strings.TrimSuffix(filepath.Base(ordersFile), filepath.Ext(ordersFile))
		name := utils.GenerateOutputFileName(mainConfig.OutputNameFormat, map[string]string{
			"uuid":    runID,
			"profile": profile.ProfileCode,
			"run":     run,
		})
		out = filepath.Join(mainConfig.OutputDir, name)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return eris.Wrap(err, "failed to create output directory")
	}

	res, err := pipeline.NewRunner(mainConfig).Run(cmd.Context(), pipeline.Input{
		RunID:       runID,
		OrderFile:   ordersFile,
		InvoiceFile: invoiceFile,
		Profile:     profile,
		Mode:        matchMode,
		OutputPath:  out,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runResult{
			RunID:      res.RunID,
			Profile:    res.Profile,
			Mode:       res.Mode.String(),
			OutputFile: res.OutputFile,
			Summary:    res.Summary,
			Payable:    res.Payable,
			Warnings:   res.Warnings,
			Issues:     validation.Summarize(res.Warnings),
		})
	}

	fmt.Fprint(w, report.FormatSummary(res.ReportData()))
	if verbose && len(res.Warnings) > 0 {
		fmt.Fprintf(w, "\n%s", validation.FormatWarnings(res.Warnings))
	}
	fmt.Fprintf(w, "\nReport: %s\n", res.OutputFile)
	return nil
}
