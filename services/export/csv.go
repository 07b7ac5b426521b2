package export

import (
	"encoding/csv"
	"io"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core/attendance"
)

// CSV renders the roster table only, UTF-8 with a BOM so that spreadsheet software detects the encoding.
type CSV struct{}

var _ attendance.Renderer = CSV{}

func (CSV) ContentType() string { return "text/csv; charset=utf-8" }

func (CSV) Filename(report attendance.Report) string { return Filename(report, "csv") }

func (CSV) Render(w io.Writer, report attendance.Report) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return errors.Wrap(err, "writing BOM")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(rosterHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}
	if err := cw.WriteAll(rosterRows(report)); err != nil {
		return errors.Wrap(err, "writing rows")
	}
	return nil
}

// ByFormat returns the renderer of an export format: xlsx (default) or csv.
func ByFormat(format string) (attendance.Renderer, bool) {
	switch format {
	case "", "xlsx":
		return XLSX{}, true
	case "csv":
		return CSV{}, true
	}
	return nil, false
}
