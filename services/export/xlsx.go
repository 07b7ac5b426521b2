package export

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/asistencia/core/attendance"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// XLSX renders the roster and the summary on two sheets.
type XLSX struct{}

var _ attendance.Renderer = XLSX{}

func (XLSX) ContentType() string { return xlsxContentType }

func (XLSX) Filename(report attendance.Report) string { return Filename(report, "xlsx") }

func (XLSX) Render(w io.Writer, report attendance.Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "creating style")
	}

	if err = f.SetSheetName(f.GetSheetName(0), RosterSheet); err != nil {
		return errors.Wrap(err, "naming roster sheet")
	}
	if err = writeRoster(f, report, bold); err != nil {
		return errors.Wrap(err, "writing roster sheet")
	}

	if _, err = f.NewSheet(SummarySheet); err != nil {
		return errors.Wrap(err, "creating summary sheet")
	}
	if err = writeSummary(f, report, bold); err != nil {
		return errors.Wrap(err, "writing summary sheet")
	}

	f.SetActiveSheet(0)
	_, err = f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

func writeRoster(f *excelize.File, report attendance.Report, headerStyle int) error {
	header := make([]interface{}, 0, len(rosterHeader))
	for _, h := range rosterHeader {
		header = append(header, h)
	}
	if err := f.SetSheetRow(RosterSheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(rosterHeader), 1)
	if err != nil {
		return err
	}
	if err = f.SetCellStyle(RosterSheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, values := range rosterRows(report) {
		row := make([]interface{}, 0, len(values))
		for _, v := range values {
			row = append(row, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(RosterSheet, cell, &row); err != nil {
			return err
		}
	}

	widths := map[string]float64{"A": 6, "B": 28, "C": 28, "D": 12, "E": 14, "F": 10, "G": 12, "H": 30}
	for col, width := range widths {
		if err = f.SetColWidth(RosterSheet, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func writeSummary(f *excelize.File, report attendance.Report, titleStyle int) error {
	for i, values := range summaryRows(report) {
		if len(values) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := values
		if err = f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
		if len(values) == 1 {
			if err = f.SetCellStyle(SummarySheet, cell, cell, titleStyle); err != nil {
				return err
			}
		}
	}
	return f.SetColWidth(SummarySheet, "A", "A", 40)
}
