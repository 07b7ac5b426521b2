// Package spreadsheet reads uploaded rosters (.xlsx, .xls, .csv) into raw table rows.
package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/roster"
)

// DefaultMaxSize is the largest accepted upload. Readers never accept more.
const DefaultMaxSize = core.MaxUploadSize

var (
	ErrInvalidExtension = errors.New("invalid file format: only .xlsx, .xls or .csv files are allowed")
	ErrFileTooLarge     = errors.New("the file is too large")
	ErrEmptyFile        = errors.New("the file is empty")

	// accepted content types per extension, as detected by mimetype
	allowedMIMEs = map[string][]string{
		".xlsx": {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
		".xls":  {"application/vnd.ms-excel", "application/x-ole-storage"},
		".csv":  {"text/csv", "text/plain", "text/tab-separated-values"},
	}
)

type decodeFunc func(data []byte) ([][]string, error)

type Reader struct {
	maxSize  int64
	decoders map[string]decodeFunc
}

var _ attendance.FileReader = (*Reader)(nil)

func NewReader(maxSize int64) *Reader {
	if maxSize <= 0 || maxSize > DefaultMaxSize {
		maxSize = DefaultMaxSize
	}
	return &Reader{
		maxSize: maxSize,
		decoders: map[string]decodeFunc{
			".xlsx": decodeXLSX,
			".xls":  decodeXLS,
			".csv":  decodeCSV,
		},
	}
}

// Validate checks the name and declared size of an upload before reading it.
func (rd *Reader) Validate(filename string, size int64) error {
	if _, ok := rd.decoders[extension(filename)]; !ok {
		return core.NewFieldError("file", ErrInvalidExtension)
	}
	if size > rd.maxSize {
		return rd.errTooLarge()
	}
	return nil
}

// MaxSize is the largest upload the reader accepts.
func (rd *Reader) MaxSize() int64 { return rd.maxSize }

func (rd *Reader) errTooLarge() error {
	return core.NewValidationError(ErrFileTooLarge, core.FieldError{
		Field: "file",
		Error: fmt.Sprintf("%v: %s maximum", ErrFileTooLarge, sizeLabel(rd.maxSize)),
	})
}

func sizeLabel(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%gMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%gKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// Read decodes the first sheet of the file. Files that cannot be decoded fail with roster.ErrUnreadableFormat.
func (rd *Reader) Read(filename string, size int64, r io.Reader) ([]roster.Row, error) {
	if err := rd.Validate(filename, size); err != nil {
		return nil, err
	}

	// read one extra byte to catch sizes that were under-declared
	data, err := io.ReadAll(io.LimitReader(r, rd.maxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > rd.maxSize {
		return nil, rd.errTooLarge()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, core.NewFieldError("file", ErrEmptyFile)
	}

	ext := extension(filename)
	if mime := mimetype.Detect(data); !mimetype.EqualsAny(mime.String(), allowedMIMEs[ext]...) {
		return nil, errors.Wrapf(roster.ErrUnreadableFormat, "%s content detected as %s", ext, mime.String())
	}

	table, err := rd.decoders[ext](data)
	if err != nil {
		return nil, errors.Wrapf(roster.ErrUnreadableFormat, "decoding %s: %v", ext, err)
	}
	return toRows(table), nil
}

// Rows of the first sheet, cells NFC-normalized so that composed and decomposed accents compare equal.
func toRows(table [][]string) []roster.Row {
	rows := make([]roster.Row, 0, len(table))
	for _, values := range table {
		row := make(roster.Row, 0, len(values))
		for _, v := range values {
			row = append(row, roster.Text(norm.NFC.String(v)))
		}
		rows = append(rows, row)
	}
	return rows
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
