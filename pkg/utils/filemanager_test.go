package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestDiscoverRunsAndLedgerFiles(t *testing.T) {
	fm := newTestManager(t)
	touch(t, filepath.Join(fm.InputDir, "week12", "Base.xlsx"))
	touch(t, filepath.Join(fm.InputDir, "week12", "factura.CSV"))
	touch(t, filepath.Join(fm.InputDir, "week12", "~$Base.xlsx"))
	touch(t, filepath.Join(fm.InputDir, "week12", "notes.pdf"))
	touch(t, filepath.Join(fm.InputDir, "week11", "base.csv"))
	touch(t, filepath.Join(fm.InputDir, ".hidden", "base.csv"))
	touch(t, filepath.Join(fm.InputDir, "stray.csv"))

	runs, err := fm.DiscoverRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "week11", filepath.Base(runs[0]))

	files, err := LedgerFiles(runs[1])
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Base.xlsx", filepath.Base(files[0]))
	assert.Equal(t, "factura.CSV", filepath.Base(files[1]))
}

func TestArchiveRun(t *testing.T) {
	fm := newTestManager(t)
	run := filepath.Join(fm.InputDir, "week12")
	touch(t, filepath.Join(run, "base.csv"))

	archived, err := fm.ArchiveRun(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "week12"), archived)
	assert.False(t, FileExists(run))
	assert.True(t, FileExists(filepath.Join(archived, "base.csv")))

	// Same name again goes next to the first archive.
	touch(t, filepath.Join(run, "base.csv"))
	fm.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	second, err := fm.ArchiveRun(run)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "week12_20260304_050607"), second)
}

func TestArchiveOutputFileWithDateSubdirs(t *testing.T) {
	fm := newTestManager(t)
	fm.UseTimestampSubdirs = true
	fm.now = func() time.Time { return time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC) }

	report := filepath.Join(fm.OutputDir, "r.xlsx")
	touch(t, report)

	archived, err := fm.ArchiveOutputFile(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputArchiveDir, "2026", "01", "09", "r.xlsx"), archived)
	assert.True(t, FileExists(report), "reports are copied, not moved")
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{profile}_{run}_{uuid}", map[string]string{"profile": "ivrea", "run": "wk/12"})
	assert.True(t, strings.HasPrefix(name, "ivrea_wk_12_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	id := strings.TrimSuffix(strings.TrimPrefix(name, "ivrea_wk_12_"), ".xlsx")
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	fixed := GenerateOutputFileName("report_{uuid}.xlsx", map[string]string{"uuid": "abc"})
	assert.Equal(t, "report_abc.xlsx", fixed)
}

func TestWriteLogs(t *testing.T) {
	fm := newTestManager(t)

	path, err := WriteErrorLog(nil, fm.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp: time.Now(), Run: "week12", ErrorType: "schema",
		ErrorMessage: "column missing", Field: "quantity", Column: "Cantidad",
	}}, fm.OutputDir)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Errors: 1")
	assert.Contains(t, string(data), "Column:     Cantidad")

	start := time.Now()
	path, err = WriteSummaryLog(ProcessingSummary{
		StartTime: start, EndTime: start.Add(time.Second),
		TotalRuns: 2, SuccessfulRuns: 1, FailedRuns: 1,
		ProcessedRuns:  []ProcessedRunInfo{{Run: "week11", RunID: "id-1", Keys: 40}},
		FailedRunsList: []FailedRunInfo{{Run: "week12", ErrorMessage: "column missing"}},
	}, fm.OutputDir)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Runs:     2")
	assert.Contains(t, string(data), "week11 (id-1)")
	assert.Contains(t, string(data), "Error: column missing")
}
