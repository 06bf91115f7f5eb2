// =============================================================================
// Order/Invoice Reconciler - Batch Command
// =============================================================================
//
// This file defines the 'batch' command. Every subdirectory of input_dir is
// one run holding an order ledger and an invoice; profiles pick the two files
// by name pattern.
//
// COMMAND USAGE:
//   reconciler batch [flags]
//
// FLAGS:
//   --dry-run : List the planned runs without processing them
//   --profile : Only try this profile when matching runs
//
// On success:
//   - The report is placed in the output directory
//   - The run directory is moved to the input archive
//   - The report is copied to the output archive
//
// On error:
//   - An error log is created in the output directory
//   - The run directory remains in the input directory
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/pipeline"
	"github.com/ginjaninja78/order-invoice-reconciler/pkg/utils"
)

var (
	dryRun       bool
	batchProfile string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Reconcile every run directory in the input directory",
	Long: `The batch command scans the input directory for run directories, matches
each one to a profile, and reconciles the runs concurrently (up to
max_concurrency at a time).

Runs are independent: a failing run does not stop the others unless
continue_on_error is false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd)
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List planned runs without processing them")
	batchCmd.Flags().StringVar(&batchProfile, "profile", "", "Only try this profile")
}

func runBatch(cmd *cobra.Command) error {
	startTime := time.Now()
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "=== Order/Invoice Reconciler ===")

	var profiles []*config.Profile
	if batchProfile != "" {
		p, err := selectProfile(batchProfile)
		if err != nil {
			return err
		}
		profiles = []*config.Profile{p}
	} else {
		var err error
		if profiles, err = loadProfiles(); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Loaded %d profile(s)\n", len(profiles))

	fm := utils.NewFileManager(
		mainConfig.InputDir,
		mainConfig.OutputDir,
		mainConfig.InputArchiveDir,
		mainConfig.OutputArchiveDir,
	)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	runs, unplanned, err := pipeline.PlanRuns(fm, profiles)
	if err != nil {
		return err
	}
	if len(runs)+len(unplanned) == 0 {
		fmt.Fprintln(w, "No run directories found in the input directory.")
		return nil
	}

	fmt.Fprintf(w, "Found %d run(s), %d without a matching profile\n", len(runs)+len(unplanned), len(unplanned))
	for _, r := range runs {
		fmt.Fprintf(w, "  %s [%s]: %s + %s\n", r.Name, r.Profile.ProfileCode,
			filepath.Base(r.OrderFile), filepath.Base(r.InvoiceFile))
	}
	for _, u := range unplanned {
		fmt.Fprintf(w, "  %s: %s\n", u.Run, u.ErrorMessage)
	}
	if dryRun {
		fmt.Fprintln(w, "\nDry run: nothing processed.")
		return nil
	}

	b := &pipeline.Batch{
		Runner:  pipeline.NewRunner(mainConfig),
		Files:   fm,
		Config:  mainConfig,
		Archive: true,
	}
	out, batchErr := b.Execute(cmd.Context(), runs, unplanned)

	fmt.Fprintln(w, "\nProcessing runs...")
	for _, pr := range out.Summary.ProcessedRuns {
		fmt.Fprintf(w, "  ✓ %s -> %s (%d keys, %d warnings)\n", pr.Run, filepath.Base(pr.OutputFile), pr.Keys, pr.Warnings)
	}
	for _, fr := range out.Summary.FailedRunsList {
		fmt.Fprintf(w, "  ✗ %s: %s\n", fr.Run, fr.ErrorMessage)
	}

	fmt.Fprintln(w, "\n=== Processing Complete ===")
	fmt.Fprintf(w, "Total runs:      %d\n", out.Summary.TotalRuns)
	fmt.Fprintf(w, "Successful:      %d\n", out.Summary.SuccessfulRuns)
	fmt.Fprintf(w, "Errors:          %d\n", out.Summary.FailedRuns)
	fmt.Fprintf(w, "Time elapsed:    %s\n", time.Since(startTime))
	if out.ErrorLog != "" {
		fmt.Fprintf(w, "\nErrors have been logged to %s\n", out.ErrorLog)
	}
	if out.SummaryLog != "" {
		fmt.Fprintf(w, "Summary written to %s\n", out.SummaryLog)
	}
	return batchErr
}
