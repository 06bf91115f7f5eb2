package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/validation"
	"github.com/ginjaninja78/order-invoice-reconciler/pkg/utils"
)

// =============================================================================
// RUN PLANNING
// =============================================================================

// PlannedRun is one run directory with its ledgers resolved.
type PlannedRun struct {
	Dir         string
	Name        string
	Profile     *config.Profile
	OrderFile   string
	InvoiceFile string
}

// PlanRuns resolves every run directory in the input directory against the
// given profiles, tried in order. The first profile that finds exactly one
// order file and one invoice file claims the run. Directories no profile can
// claim are returned as failures.
func PlanRuns(fm *utils.FileManager, profiles []*config.Profile) ([]PlannedRun, []utils.FailedRunInfo, error) {
	dirs, err := fm.DiscoverRuns()
	if err != nil {
		return nil, nil, err
	}

	var (
		planned []PlannedRun
		failed  []utils.FailedRunInfo
	)
	for _, dir := range dirs {
		files, err := utils.LedgerFiles(dir)
		if err != nil {
			return nil, nil, err
		}

		run, reason := claim(dir, files, profiles)
		if reason != "" {
			failed = append(failed, utils.FailedRunInfo{Run: filepath.Base(dir), ErrorMessage: reason})
			continue
		}
		planned = append(planned, run)
	}
	return planned, failed, nil
}

func claim(dir string, files []string, profiles []*config.Profile) (PlannedRun, string) {
	reasons := make([]string, 0, len(profiles))
	for _, p := range profiles {
		var orders, invoices []string
		for _, f := range files {
			switch {
			case p.MatchesOrder(f):
				orders = append(orders, f)
			case p.MatchesInvoice(f):
				invoices = append(invoices, f)
			}
		}
		if len(orders) == 1 && len(invoices) == 1 {
			return PlannedRun{
				Dir: dir, Name: filepath.Base(dir), Profile: p,
				OrderFile: orders[0], InvoiceFile: invoices[0],
			}, ""
		}
		reasons = append(reasons, p.ProfileCode+": "+describe(len(orders), len(invoices)))
	}
	if len(reasons) == 0 {
		return PlannedRun{}, "no profiles loaded"
	}
	return PlannedRun{}, "no profile matched (" + strings.Join(reasons, "; ") + ")"
}

func describe(orders, invoices int) string {
	parts := []string{}
	if orders != 1 {
		parts = append(parts, plural(orders, "order file"))
	}
	if invoices != 1 {
		parts = append(parts, plural(invoices, "invoice file"))
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 0 {
		return "no " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// =============================================================================
// BATCH EXECUTION
// =============================================================================

// Batch runs planned runs concurrently and archives what succeeded.
type Batch struct {
	Runner *Runner
	Files  *utils.FileManager
	Config *config.MainConfig

	// Archive moves successful run directories to the input archive and
	// copies their reports to the output archive.
	Archive bool
}

// BatchResult describes a finished batch.
type BatchResult struct {
	Summary     utils.ProcessingSummary
	Results     []*Result
	ErrorLog    string
	SummaryLog  string
	ErrorsTotal int
}

// Execute processes runs with at most Config.MaxConcurrency in flight.
// Runs that could not be planned are passed in as failed and reported with
// the rest. With ContinueOnError unset the first failure cancels the batch.
func (b *Batch) Execute(ctx context.Context, runs []PlannedRun, unplanned []utils.FailedRunInfo) (*BatchResult, error) {
	logger := zap.L().Named("batch")
	summary := utils.ProcessingSummary{
		StartTime:      time.Now(),
		TotalRuns:      len(runs) + len(unplanned),
		FailedRunsList: append([]utils.FailedRunInfo(nil), unplanned...),
	}

	var errorLog []utils.ErrorLogEntry
	for _, u := range unplanned {
		errorLog = append(errorLog, utils.ErrorLogEntry{
			Timestamp: time.Now(), Run: u.Run, ErrorType: "planning", ErrorMessage: u.ErrorMessage,
		})
	}

	limit := b.Config.MaxConcurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu      sync.Mutex
		results []*Result
	)
	for _, run := range runs {
		run := run
		g.Go(func() error {
			res, info, err := b.one(gctx, run)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Error("run failed", zap.String("run", run.Name), zap.Error(err))
				summary.FailedRunsList = append(summary.FailedRunsList, utils.FailedRunInfo{Run: run.Name, ErrorMessage: err.Error()})
				errorLog = append(errorLog, errorEntry(run.Name, err))
				if !b.Config.ContinueOnError {
					return eris.Wrapf(err, "run %s", run.Name)
				}
				return nil
			}
			results = append(results, res)
			summary.ProcessedRuns = append(summary.ProcessedRuns, info)
			summary.TotalKeys += res.Stats.Keys
			summary.TotalWarnings += res.Stats.Warnings
			return nil
		})
	}
	groupErr := g.Wait()

	sort.Slice(summary.ProcessedRuns, func(i, j int) bool { return summary.ProcessedRuns[i].Run < summary.ProcessedRuns[j].Run })
	sort.Slice(summary.FailedRunsList, func(i, j int) bool { return summary.FailedRunsList[i].Run < summary.FailedRunsList[j].Run })
	sort.Slice(results, func(i, j int) bool { return results[i].OutputFile < results[j].OutputFile })
	summary.SuccessfulRuns = len(summary.ProcessedRuns)
	summary.FailedRuns = len(summary.FailedRunsList)
	summary.EndTime = time.Now()

	out := &BatchResult{Summary: summary, Results: results, ErrorsTotal: len(errorLog)}

	var err error
	if out.ErrorLog, err = utils.WriteErrorLog(errorLog, b.Files.OutputDir); err != nil {
		logger.Warn("failed to write error log", zap.Error(err))
	}
	if out.SummaryLog, err = utils.WriteSummaryLog(summary, b.Files.OutputDir); err != nil {
		logger.Warn("failed to write summary log", zap.Error(err))
	}

	logger.Info("batch complete",
		zap.Int("runs", summary.TotalRuns),
		zap.Int("successful", summary.SuccessfulRuns),
		zap.Int("failed", summary.FailedRuns))
	return out, groupErr
}

func (b *Batch) one(ctx context.Context, run PlannedRun) (*Result, utils.ProcessedRunInfo, error) {
	runID := uuid.NewString()
	name := utils.GenerateOutputFileName(b.Config.OutputNameFormat, map[string]string{
		"uuid":    runID,
		"profile": run.Profile.ProfileCode,
		"run":     run.Name,
	})
	output := filepath.Join(b.Files.OutputDir, name)

	res, err := b.Runner.Run(ctx, Input{
		RunID:       runID,
		OrderFile:   run.OrderFile,
		InvoiceFile: run.InvoiceFile,
		Profile:     run.Profile,
		OutputPath:  output,
	})
	if err != nil {
		return nil, utils.ProcessedRunInfo{}, err
	}

	logger := zap.L().Named("batch").With(zap.String("run", run.Name))
	if len(res.Warnings) > 0 {
		warnLog := strings.TrimSuffix(output, filepath.Ext(output)) + "_warnings.txt"
		if err := validation.WriteWarningLog(res.Warnings, warnLog); err != nil {
			logger.Warn("failed to write warning log", zap.Error(err))
		}
	}

	if b.Archive {
		if _, err := b.Files.ArchiveOutputFile(output); err != nil {
			logger.Warn("failed to archive report", zap.Error(err))
		}
		if _, err := b.Files.ArchiveRun(run.Dir); err != nil {
			logger.Warn("failed to archive run", zap.Error(err))
		}
	}

	return res, utils.ProcessedRunInfo{
		Run:         run.Name,
		RunID:       runID,
		OrderFile:   filepath.Base(run.OrderFile),
		InvoiceFile: filepath.Base(run.InvoiceFile),
		OutputFile:  output,
		Keys:        res.Stats.Keys,
		Warnings:    res.Stats.Warnings,
		ProcessTime: res.Stats.ProcessingTime,
	}, nil
}

func errorEntry(run string, err error) utils.ErrorLogEntry {
	entry := utils.ErrorLogEntry{
		Timestamp:    time.Now(),
		Run:          run,
		ErrorType:    "processing",
		ErrorMessage: err.Error(),
	}
	if se, ok := AsSchemaError(err); ok {
		entry.ErrorType = "schema"
		entry.Field = se.Field
		entry.Column = se.Column
	}
	return entry
}
