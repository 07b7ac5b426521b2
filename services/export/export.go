// Package export renders attendance reports as spreadsheets.
package export

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/trezcool/asistencia/core/attendance"
)

const (
	ReportTitle    = "RESUMEN DE ASISTENCIA - UNIVERSIDAD TECNOLÓGICA DEL PERÚ"
	RosterSheet    = "Lista de Estudiantes"
	SummarySheet   = "Resumen"
	noValue        = "-"
	noMarkers      = "No hay registros"
	exportedAtFmt  = "02/01/2006 15:04"
	filenameDate   = "2006-01-02"
	filenamePrefix = "UTP"
)

var (
	rosterHeader = []string{"N°", "Apellidos", "Nombres", "DNI", "Teléfono", "Origen", "Asistencia", "Marcado por"}

	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Filename returns UTP_<list name>_<date>.<ext>, every non-alphanumeric character of the name replaced by "_".
func Filename(report attendance.Report, ext string) string {
	name := unsafeFilenameChars.ReplaceAllString(report.List.Name, "_")
	return fmt.Sprintf("%s_%s_%s.%s", filenamePrefix, name, report.GeneratedAt.Format(filenameDate), strings.TrimPrefix(ext, "."))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return noValue
	}
	return s
}

func attendanceLabel(present bool) string {
	if present {
		return "Presente"
	}
	return "Ausente"
}

// rosterRows is the student table, numbered from 1 in the order of the report.
func rosterRows(report attendance.Report) [][]string {
	rows := make([][]string, 0, len(report.Entries))
	for i, e := range report.Entries {
		rows = append(rows, []string{
			fmt.Sprint(i + 1),
			e.Student.Surnames,
			e.Student.GivenNames,
			orDash(e.Student.DNI),
			orDash(e.Student.Phone),
			e.Origin.Label(),
			attendanceLabel(e.Present),
			orDash(e.MarkedBy),
		})
	}
	return rows
}

// summaryRows is the "Resumen" sheet: label/value pairs, single-cell section titles and blank separators.
func summaryRows(report attendance.Report) [][]interface{} {
	sum := report.Summary
	rows := [][]interface{}{
		{ReportTitle},
		{"Lista:", report.List.Name},
		{"Fecha de exportación:", report.GeneratedAt.Format(exportedAtFmt)},
		{},
		{"ESTADÍSTICAS GENERALES"},
		{"Total de estudiantes", sum.Total},
		{"Estudiantes presentes", sum.Present},
		{"Estudiantes ausentes", sum.Absent},
		{"Porcentaje de asistencia", fmt.Sprintf("%.1f%%", sum.Percentage)},
		{},
		{"DESGLOSE POR ORIGEN"},
		{"Presentes del Excel", sum.PresentSpreadsheet},
		{"Presentes agregados manualmente", sum.PresentManual},
		{"Ausentes del Excel", sum.AbsentSpreadsheet},
		{"Ausentes agregados manualmente", sum.AbsentManual},
		{},
		{"DESGLOSE POR USUARIO (presentes)"},
	}
	if len(sum.ByMarker) == 0 {
		return append(rows, []interface{}{noMarkers, ""})
	}
	for _, m := range sum.ByMarker {
		rows = append(rows, []interface{}{m.MarkedBy, m.Count})
	}
	return rows
}
