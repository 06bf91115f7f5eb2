package report

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes sheets to a new workbook at path. Nothing is left at
// path when writing fails.
func WriteXLSX(path string, sheets []Sheet) (err error) {
	if len(sheets) == 0 {
		return eris.New("report has no sheets")
	}

	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "failed to create report %s", path)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "failed to save report %s", path)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	return Write(out, sheets)
}

// Write streams the workbook for sheets to w.
func Write(w io.Writer, sheets []Sheet) error {
	f, err := newWorkbook(sheets)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return eris.Wrap(err, "failed to write report")
	}
	return nil
}

func newWorkbook(sheets []Sheet) (*excelize.File, error) {
	if len(sheets) == 0 {
		return nil, eris.New("report has no sheets")
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, eris.Wrap(err, "failed to create header style")
	}

	for i, s := range sheets {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), s.Name)
		} else {
			_, err = f.NewSheet(s.Name)
		}
		if err != nil {
			f.Close()
			return nil, eris.Wrapf(err, "failed to add sheet %q", s.Name)
		}
		if err := writeSheet(f, s, bold); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	header := make([]any, len(s.Headers))
	for i, h := range s.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return eris.Wrapf(err, "failed to write header of %q", s.Name)
	}
	if len(s.Headers) > 0 {
		last, err := excelize.CoordinatesToCellName(len(s.Headers), 1)
		if err != nil {
			return eris.Wrap(err, "header range")
		}
		if err := f.SetCellStyle(s.Name, "A1", last, headerStyle); err != nil {
			return eris.Wrapf(err, "failed to style header of %q", s.Name)
		}
	}

	for r, row := range s.Rows {
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return eris.Wrap(err, "row address")
		}
		cells := row
		if err := f.SetSheetRow(s.Name, axis, &cells); err != nil {
			return eris.Wrapf(err, "failed to write row %d of %q", r+2, s.Name)
		}
	}
	return nil
}
