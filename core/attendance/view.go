package attendance

import (
	"sort"
	"strings"
)

// FilterRoster applies the search, attendance filter and ordering of f to entries.
// f must have been cleaned. entries is left untouched.
func FilterRoster(entries []Entry, f RosterFilter) []Entry {
	filtered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if matchesSearch(e.Student, f.Search) && matchesAttendance(e, f.Attendance) {
			filtered = append(filtered, e)
		}
	}

	if f.Order == OrderAlphabetical {
		sort.SliceStable(filtered, func(i, j int) bool {
			si, sj := filtered[i].Student, filtered[j].Student
			if a, b := strings.ToLower(si.Surnames), strings.ToLower(sj.Surnames); a != b {
				return a < b
			}
			return strings.ToLower(si.GivenNames) < strings.ToLower(sj.GivenNames)
		})
	} else {
		SortOriginal(filtered)
	}
	return filtered
}

// SortOriginal orders entries as they came in the uploaded file, manual additions last.
func SortOriginal(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].OriginalOrder != entries[j].OriginalOrder {
			return entries[i].OriginalOrder < entries[j].OriginalOrder
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

func matchesSearch(s Student, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.GivenNames), term) ||
		strings.Contains(strings.ToLower(s.Surnames), term) ||
		strings.Contains(s.DNI, term)
}

func matchesAttendance(e Entry, filter string) bool {
	switch filter {
	case AttendancePresent:
		return e.Present
	case AttendanceAbsent:
		return !e.Present
	default:
		return true
	}
}
