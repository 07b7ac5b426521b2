package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func decodeCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		// spreadsheet software on Windows exports CSV as Windows-1252
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Wrap(err, "decoding windows-1252")
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = sniffDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return readRows(r)
}

// readRows reads every record the way spreadsheets show them: trailing empty fields are dropped,
// and blank lines between records (skipped by encoding/csv) come back as empty rows so that row
// positions match the file. Blank lines before the first record are ignored.
func readRows(r *csv.Reader) ([][]string, error) {
	var table [][]string
	lastLine := 0 // line where the previous record ended
	for {
		record, err := r.Read()
		if err == io.EOF {
			return table, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing csv")
		}

		line, _ := r.FieldPos(0)
		if lastLine > 0 {
			for i := lastLine + 1; i < line; i++ {
				table = append(table, []string{})
			}
		}
		last := len(record) - 1
		end, _ := r.FieldPos(last)
		lastLine = end + strings.Count(record[last], "\n")

		table = append(table, trimTrailingEmpty(record))
	}
}

// sniffDelimiter picks the most frequent of , ; and tab in the header line.
func sniffDelimiter(data []byte) rune {
	header := bytes.TrimLeft(data, "\r\n")
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		header = header[:i]
	}

	best, bestCount := ',', bytes.Count(header, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(header, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
