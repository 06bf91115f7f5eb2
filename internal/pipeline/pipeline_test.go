package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/order-invoice-reconciler/internal/config"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/reconcile"
	"github.com/ginjaninja78/order-invoice-reconciler/internal/report"
	"github.com/ginjaninja78/order-invoice-reconciler/pkg/utils"
)

const ordersCSV = `Pais;Semana;Editorial;Nombre;Cantidad
Chile;12;Ivrea;Naruto 1;10
Chile;12;Ivrea;Akira;2
Perú;12;Ovni;Berserk;1
`

const invoiceCSV = `Nombre;Cantidad;PVP;Total
Ivrea Chile;;;
Naruto 1;7;10;
Akira;2;5;
Ovni Peru;;;
Monster;3;4;
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig() *config.MainConfig {
	return &config.MainConfig{
		OutputNameFormat:   "{profile}_{run}_{uuid}",
		SheetNameMaxLength: 31,
		MaxConcurrency:     2,
		ContinueOnError:    true,
	}
}

func testProfile() *config.Profile {
	p := config.DefaultProfile()
	p.Discounts = map[string]float64{"Ivrea": 10}
	return p
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.xlsx")

	res, err := NewRunner(testConfig()).Run(context.Background(), Input{
		OrderFile:   writeFile(t, filepath.Join(dir, "base.csv"), ordersCSV),
		InvoiceFile: writeFile(t, filepath.Join(dir, "factura.csv"), invoiceCSV),
		Profile:     testProfile(),
		OutputPath:  out,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, reconcile.CountryTitle, res.Mode)
	assert.Equal(t, 4, res.Stats.Keys)
	assert.Equal(t, 3, res.Stats.OrderLines)
	assert.Equal(t, 3, res.Stats.InvoiceLines)
	assert.Empty(t, res.Warnings)

	assert.Equal(t, 1, res.Summary.ByStatus[reconcile.StatusShort])
	assert.Equal(t, 1, res.Summary.ByStatus[reconcile.StatusMatchedExact])
	assert.Equal(t, 1, res.Summary.ByStatus[reconcile.StatusMissingFromInvoice])
	assert.Equal(t, 1, res.Summary.ByStatus[reconcile.StatusUnorderedInInvoice])

	require.Len(t, res.Payable, 2)
	assert.Equal(t, "Chile", res.Payable[0].Country)
	assert.InDelta(t, 80.0, res.Payable[0].InvoicedTotal, 1e-9)
	assert.InDelta(t, 72.0, res.Payable[0].DiscountedTotal, 1e-9)
	assert.Equal(t, "Perú", res.Payable[1].Country)
	assert.InDelta(t, 12.0, res.Payable[1].InvoicedTotal, 1e-9)

	assert.Equal(t, out, res.OutputFile)
	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{
		report.SheetFull, report.SheetMatched, report.SheetShortfall,
		report.SheetOverage, report.SheetPayable,
	}, f.GetSheetList())
}

func TestRun_NoOutputPathWritesNothing(t *testing.T) {
	dir := t.TempDir()
	res, err := NewRunner(testConfig()).Run(context.Background(), Input{
		OrderFile:   writeFile(t, filepath.Join(dir, "base.csv"), ordersCSV),
		InvoiceFile: writeFile(t, filepath.Join(dir, "factura.csv"), invoiceCSV),
		Profile:     testProfile(),
		Mode:        "title",
	})
	require.NoError(t, err)
	assert.Empty(t, res.OutputFile)
	assert.Equal(t, reconcile.TitleOnly, res.Mode)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_SchemaErrorAbortsWithoutReport(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.xlsx")
	orders := strings.Replace(ordersCSV, "Cantidad", "Unidades", 1)

	_, err := NewRunner(testConfig()).Run(context.Background(), Input{
		OrderFile:   writeFile(t, filepath.Join(dir, "base.csv"), orders),
		InvoiceFile: writeFile(t, filepath.Join(dir, "factura.csv"), invoiceCSV),
		Profile:     testProfile(),
		OutputPath:  out,
	})
	require.Error(t, err)

	se, ok := AsSchemaError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Cantidad", se.Column)
	assert.NoFileExists(t, out)
}

func TestRun_InvalidInputs(t *testing.T) {
	dir := t.TempDir()
	orders := writeFile(t, filepath.Join(dir, "base.csv"), ordersCSV)
	invoice := writeFile(t, filepath.Join(dir, "factura.csv"), invoiceCSV)
	runner := NewRunner(testConfig())

	_, err := runner.Run(context.Background(), Input{OrderFile: orders, InvoiceFile: invoice})
	assert.Error(t, err, "missing profile")

	_, err = runner.Run(context.Background(), Input{OrderFile: orders, InvoiceFile: invoice, Profile: testProfile(), Mode: "fuzzy"})
	assert.Error(t, err, "unknown mode")

	_, err = runner.Run(context.Background(), Input{OrderFile: orders, Profile: testProfile()})
	assert.Error(t, err, "missing invoice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx, Input{OrderFile: orders, InvoiceFile: invoice, Profile: testProfile()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_TransformationRules(t *testing.T) {
	dir := t.TempDir()
	orders := strings.ReplaceAll(ordersCSV, "Chile;", "CL;")

	p := testProfile()
	p.TransformationRules = []config.TransformationRule{{
		Ledger: config.TargetOrders,
		Field:  "Pais",
		Actions: []config.TransformationAction{
			{Type: config.ActionLookup, LookupTable: map[string]string{"CL": "Chile"}},
		},
	}}

	res, err := NewRunner(testConfig()).Run(context.Background(), Input{
		OrderFile:   writeFile(t, filepath.Join(dir, "base.csv"), orders),
		InvoiceFile: writeFile(t, filepath.Join(dir, "factura.csv"), invoiceCSV),
		Profile:     p,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.ByStatus[reconcile.StatusMatchedExact])
}

func TestLoadTable_Dispatch(t *testing.T) {
	dir := t.TempDir()
	p := testProfile()

	tb, err := LoadTable(writeFile(t, filepath.Join(dir, "base.TXT"), ordersCSV), p)
	require.NoError(t, err)
	assert.Equal(t, 3, tb.Len())

	xlsx := filepath.Join(dir, "factura.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Nombre", "Cantidad"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Akira", 2}))
	require.NoError(t, f.SaveAs(xlsx))
	require.NoError(t, f.Close())

	tb, err = LoadTable(xlsx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, tb.Len())

	_, err = LoadTable(filepath.Join(dir, "notes.pdf"), p)
	assert.Error(t, err)
}

func TestBatch_PlanAndExecute(t *testing.T) {
	root := t.TempDir()
	fm := utils.NewFileManager(
		filepath.Join(root, "input"), filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"), filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())

	writeFile(t, filepath.Join(fm.InputDir, "week12", "Base_semana.csv"), ordersCSV)
	writeFile(t, filepath.Join(fm.InputDir, "week12", "Factura_0042.csv"), invoiceCSV)
	writeFile(t, filepath.Join(fm.InputDir, "week13", "base.csv"), ordersCSV)

	profiles := []*config.Profile{testProfile()}
	runs, unplanned, err := PlanRuns(fm, profiles)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "week12", runs[0].Name)
	assert.Equal(t, "Base_semana.csv", filepath.Base(runs[0].OrderFile))
	require.Len(t, unplanned, 1)
	assert.Equal(t, "week13", unplanned[0].Run)
	assert.Contains(t, unplanned[0].ErrorMessage, "no invoice file")

	cfg := testConfig()
	b := &Batch{Runner: NewRunner(cfg), Files: fm, Config: cfg, Archive: true}
	out, err := b.Execute(context.Background(), runs, unplanned)
	require.NoError(t, err)

	assert.Equal(t, 2, out.Summary.TotalRuns)
	assert.Equal(t, 1, out.Summary.SuccessfulRuns)
	assert.Equal(t, 1, out.Summary.FailedRuns)
	assert.Equal(t, 4, out.Summary.TotalKeys)
	require.Len(t, out.Results, 1)

	written := out.Results[0].OutputFile
	assert.FileExists(t, written)
	assert.True(t, strings.HasPrefix(filepath.Base(written), "default_week12_"+out.Results[0].RunID))
	assert.FileExists(t, filepath.Join(fm.OutputArchiveDir, filepath.Base(written)))

	assert.NoDirExists(t, filepath.Join(fm.InputDir, "week12"))
	assert.DirExists(t, filepath.Join(fm.InputArchiveDir, "week12"))
	assert.DirExists(t, filepath.Join(fm.InputDir, "week13"), "unplanned runs stay in place")

	assert.FileExists(t, out.ErrorLog)
	assert.FileExists(t, out.SummaryLog)
}

func TestBatch_StopsOnErrorWhenConfigured(t *testing.T) {
	root := t.TempDir()
	fm := utils.NewFileManager(
		filepath.Join(root, "input"), filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"), filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())

	bad := strings.Replace(ordersCSV, "Cantidad", "Unidades", 1)
	writeFile(t, filepath.Join(fm.InputDir, "week12", "base.csv"), bad)
	writeFile(t, filepath.Join(fm.InputDir, "week12", "factura.csv"), invoiceCSV)

	runs, _, err := PlanRuns(fm, []*config.Profile{testProfile()})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	cfg := testConfig()
	cfg.ContinueOnError = false
	b := &Batch{Runner: NewRunner(cfg), Files: fm, Config: cfg}
	out, err := b.Execute(context.Background(), runs, nil)
	require.Error(t, err)
	assert.Equal(t, 1, out.Summary.FailedRuns)

	data, err := os.ReadFile(out.ErrorLog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Error Type: schema")
	assert.Contains(t, string(data), "Column:     Cantidad")
}
