// =============================================================================
// Order/Invoice Reconciler - File Manager Utility
// =============================================================================
//
// This module provides file management for batch runs:
//   - Run discovery (one subdirectory of the input directory per run)
//   - Ledger file listing
//   - Archival of run directories and reports
//   - Report naming
//   - Error and summary logs
//
// ARCHIVAL STRATEGY:
//   - A run directory is moved to input_archive after a successful run
//   - Reports are copied to output_archive for long-term storage
//   - Failed runs stay where they are
//   - Error and summary logs are created in the output directory
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// LedgerExtensions are the file extensions a run may contain.
var LedgerExtensions = []string{".csv", ".txt", ".xlsx", ".xlsm"}

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for batch runs.
type FileManager struct {
	InputDir         string
	OutputDir        string
	InputArchiveDir  string
	OutputArchiveDir string

	// UseTimestampSubdirs files archives under YYYY/MM/DD.
	UseTimestampSubdirs bool

	now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, outputArchiveDir string) *FileManager {
	return &FileManager{
		InputDir:         inputDir,
		OutputDir:        outputDir,
		InputArchiveDir:  inputArchiveDir,
		OutputArchiveDir: outputArchiveDir,
		now:              time.Now,
	}
}

// EnsureDirectories creates all required directories if they don't exist.
func (fm *FileManager) EnsureDirectories() error {
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.InputArchiveDir, fm.OutputArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return eris.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	return nil
}

// =============================================================================
// RUN DISCOVERY
// =============================================================================

// DiscoverRuns returns the run directories under the input directory,
// sorted by name. Hidden directories are skipped.
func (fm *FileManager) DiscoverRuns() ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read input directory %s", fm.InputDir)
	}

	var runs []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		runs = append(runs, filepath.Join(fm.InputDir, e.Name()))
	}
	sort.Strings(runs)
	return runs, nil
}

// LedgerFiles lists the ledger files of a run directory, sorted by name.
// Office lock files ("~$...") and hidden files are skipped.
func LedgerFiles(runDir string) ([]string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read run directory %s", runDir)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if !IsLedgerFile(name) {
			continue
		}
		files = append(files, filepath.Join(runDir, name))
	}
	sort.Strings(files)
	return files, nil
}

// IsLedgerFile reports whether name has a supported extension.
func IsLedgerFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range LedgerExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// =============================================================================
// ARCHIVAL
// =============================================================================

// ArchiveRun moves a run directory into the input archive. If the target
// already exists a timestamp is appended.
func (fm *FileManager) ArchiveRun(runDir string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, runDir)
	if FileExists(archivePath) {
		archivePath += "_" + fm.clock().Format("20060102_150405")
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", eris.Wrap(err, "failed to create archive directory")
	}

	if err := os.Rename(runDir, archivePath); err != nil {
		// Cross-device moves fall back to copy and remove.
		if err := copyDir(runDir, archivePath); err != nil {
			return "", eris.Wrap(err, "failed to copy run to archive")
		}
		if err := os.RemoveAll(runDir); err != nil {
			return "", eris.Wrap(err, "failed to remove archived run")
		}
	}
	return archivePath, nil
}

// ArchiveOutputFile copies a report into the output archive.
func (fm *FileManager) ArchiveOutputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.OutputArchiveDir, filePath)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", eris.Wrap(err, "failed to create archive directory")
	}
	if err := copyFile(filePath, archivePath); err != nil {
		return "", eris.Wrap(err, "failed to copy report to archive")
	}
	return archivePath, nil
}

func (fm *FileManager) clock() time.Time {
	if fm.now == nil {
		return time.Now()
	}
	return fm.now()
}

func (fm *FileManager) getArchivePath(archiveDir, path string) string {
	name := filepath.Base(path)
	if fm.UseTimestampSubdirs {
		now := fm.clock()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			name,
		)
	}
	return filepath.Join(archiveDir, name)
}

// =============================================================================
// FILE NAMING
// =============================================================================

// GenerateOutputFileName expands a report name format.
//
// Placeholders:
//   {uuid}      - params["uuid"] if set, else a new random UUID
//   {timestamp} - YYYYMMDD_HHMMSS
//   {date}      - YYYYMMDD
//   any other {key} from params ({profile}, {run})
//
// The result always ends in .xlsx; path separators in values are replaced.
func GenerateOutputFileName(format string, params map[string]string) string {
	now := time.Now()

	replacements := map[string]string{
		"{uuid}":      uuid.New().String(),
		"{timestamp}": now.Format("20060102_150405"),
		"{date}":      now.Format("20060102"),
	}
	for key, value := range params {
		replacements["{"+key+"}"] = sanitize(value)
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xlsx") {
		result += ".xlsx"
	}
	return result
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(s)
}

// =============================================================================
// ERROR LOG
// =============================================================================

// ErrorLogEntry represents a single failed run.
type ErrorLogEntry struct {
	Timestamp    time.Time
	Run          string
	ErrorType    string
	ErrorMessage string

	// Field and Column are set for schema errors.
	Field  string
	Column string
}

// WriteErrorLog writes entries to error_log_<timestamp>.txt in outputDir.
// It returns "" when there is nothing to write.
func WriteErrorLog(entries []ErrorLogEntry, outputDir string) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(outputDir, fmt.Sprintf("error_log_%s.txt", time.Now().Format("20060102_150405")))
	file, err := os.Create(logPath)
	if err != nil {
		return "", eris.Wrap(err, "failed to create error log")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Order/Invoice Reconciler - Error Log\n"+
		"Generated: %s\n"+
		"Total Errors: %d\n"+
		"================================================================================\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(entries))

	for i, entry := range entries {
		fmt.Fprintf(writer, "Error #%d\n"+
			"  Timestamp:  %s\n"+
			"  Run:        %s\n"+
			"  Error Type: %s\n"+
			"  Message:    %s\n",
			i+1,
			entry.Timestamp.Format("2006-01-02 15:04:05"),
			entry.Run,
			entry.ErrorType,
			entry.ErrorMessage)
		if entry.Field != "" {
			fmt.Fprintf(writer, "  Field:      %s\n", entry.Field)
		}
		if entry.Column != "" {
			fmt.Fprintf(writer, "  Column:     %s\n", entry.Column)
		}
		writer.WriteString("\n")
	}
	writer.WriteString("================================================================================\n" +
		"End of Error Log\n")

	if err := writer.Flush(); err != nil {
		return "", eris.Wrap(err, "failed to flush error log")
	}
	return logPath, nil
}

// =============================================================================
// SUMMARY LOG
// =============================================================================

// ProcessingSummary describes a whole batch.
type ProcessingSummary struct {
	StartTime      time.Time
	EndTime        time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	TotalKeys      int
	TotalWarnings  int
	ProcessedRuns  []ProcessedRunInfo
	FailedRunsList []FailedRunInfo
}

// ProcessedRunInfo describes one successful run.
type ProcessedRunInfo struct {
	Run         string
	RunID       string
	OrderFile   string
	InvoiceFile string
	OutputFile  string
	Keys        int
	Warnings    int
	ProcessTime time.Duration
}

// FailedRunInfo describes one failed run.
type FailedRunInfo struct {
	Run          string
	ErrorMessage string
}

// WriteSummaryLog writes processing_summary_<timestamp>.txt in outputDir.
func WriteSummaryLog(summary ProcessingSummary, outputDir string) (string, error) {
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("processing_summary_%s.txt", time.Now().Format("20060102_150405")))
	file, err := os.Create(summaryPath)
	if err != nil {
		return "", eris.Wrap(err, "failed to create summary file")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintf(writer, "Order/Invoice Reconciler - Processing Summary\n"+
		"================================================================================\n\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Runs:     %d\n"+
		"  Successful:     %d\n"+
		"  Failed:         %d\n"+
		"  Keys:           %d\n"+
		"  Warnings:       %d\n\n",
		summary.StartTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Format("2006-01-02 15:04:05"),
		summary.EndTime.Sub(summary.StartTime).String(),
		summary.TotalRuns,
		summary.SuccessfulRuns,
		summary.FailedRuns,
		summary.TotalKeys,
		summary.TotalWarnings)

	if len(summary.ProcessedRuns) > 0 {
		writer.WriteString("Successful Runs:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, pr := range summary.ProcessedRuns {
			fmt.Fprintf(writer, "  Run:          %s (%s)\n", pr.Run, pr.RunID)
			fmt.Fprintf(writer, "  Orders:       %s\n", pr.OrderFile)
			fmt.Fprintf(writer, "  Invoice:      %s\n", pr.InvoiceFile)
			fmt.Fprintf(writer, "  Report:       %s\n", pr.OutputFile)
			fmt.Fprintf(writer, "  Keys:         %d\n", pr.Keys)
			fmt.Fprintf(writer, "  Warnings:     %d\n", pr.Warnings)
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pr.ProcessTime.String())
		}
	}

	if len(summary.FailedRunsList) > 0 {
		writer.WriteString("Failed Runs:\n")
		writer.WriteString("--------------------------------------------------------------------------------\n")
		for _, fr := range summary.FailedRunsList {
			fmt.Fprintf(writer, "  Run:   %s\n", fr.Run)
			fmt.Fprintf(writer, "  Error: %s\n\n", fr.ErrorMessage)
		}
	}

	writer.WriteString("================================================================================\n" +
		"End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", eris.Wrap(err, "failed to flush summary file")
	}
	return summaryPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
