// Package roster turns the raw rows of an uploaded table into a deduplicated list of names,
// keeping every survivor's position in the file.
package roster

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnreadableFormat is returned by file readers when the input cannot be decoded as a table.
var ErrUnreadableFormat = errors.New("unreadable spreadsheet format")

type (
	// Record is a normalized roster line.
	Record struct {
		GivenNames    string `json:"given_names"`
		Surnames      string `json:"surnames"`
		OriginalOrder int    `json:"original_order"` // 1-based data row position, header excluded
	}

	Result struct {
		Records           []Record `json:"records"`
		DuplicatesSkipped int      `json:"duplicates_skipped"`
	}
)

// DuplicateKey identifies a person independently of case and spacing.
func (r Record) DuplicateKey() string {
	return DuplicateKey(r.GivenNames, r.Surnames)
}

func DuplicateKey(given, surnames string) string {
	return collapseLower(given) + "|" + collapseLower(surnames)
}

func collapseLower(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Normalize reads table as a header row followed by data rows.
// Rejected rows are skipped silently; repeated names count towards DuplicatesSkipped.
func Normalize(table []Row) Result {
	res := Result{Records: []Record{}}
	if len(table) < 2 {
		return res
	}

	seen := make(map[string]struct{}, len(table)-1)
	for i, row := range table[1:] {
		given, surnames, ok := DetectLayout(row).parse(row)
		if !ok {
			continue
		}

		rec := Record{GivenNames: given, Surnames: surnames, OriginalOrder: i + 1}
		key := rec.DuplicateKey()
		if _, dup := seen[key]; dup {
			res.DuplicatesSkipped++
			continue
		}
		seen[key] = struct{}{}
		res.Records = append(res.Records, rec)
	}
	return res
}

// NormalizeStrings is Normalize over plain string rows.
func NormalizeStrings(table [][]string) Result {
	rows := make([]Row, 0, len(table))
	for _, values := range table {
		rows = append(rows, RowOf(values...))
	}
	return Normalize(rows)
}
