package roster

import "strings"

// ColumnLayout is how the cells of a row map onto given names and surnames.
type ColumnLayout int

const (
	LayoutInvalid ColumnLayout = iota
	// LayoutFourColumn is first given name, second given name, first surname, second surname.
	// Rows of exactly three cells use it with the second surname missing.
	LayoutFourColumn
	// LayoutTwoColumn is given names, surnames.
	LayoutTwoColumn
	// LayoutSingleColumn is a full name to be split on whitespace.
	LayoutSingleColumn
)

var layoutNames = map[ColumnLayout]string{
	LayoutInvalid:      "invalid",
	LayoutFourColumn:   "four-column",
	LayoutTwoColumn:    "two-column",
	LayoutSingleColumn: "single-column",
}

func (l ColumnLayout) String() string {
	if name, ok := layoutNames[l]; ok {
		return name
	}
	return layoutNames[LayoutInvalid]
}

// DetectLayout picks the layout of a single row from its cell count.
func DetectLayout(row Row) ColumnLayout {
	switch n := len(row); {
	case n >= 3:
		return LayoutFourColumn
	case n == 2:
		return LayoutTwoColumn
	case n == 1:
		return LayoutSingleColumn
	default:
		return LayoutInvalid
	}
}

// parse extracts the names of a row under the given layout.
// ok is false when the row must be rejected.
func (l ColumnLayout) parse(row Row) (given, surnames string, ok bool) {
	switch l {
	case LayoutFourColumn:
		first, second := row.at(0).String(), row.at(1).String()
		firstSurname, secondSurname := row.at(2).String(), row.at(3).String()
		if first == "" || firstSurname == "" {
			return "", "", false
		}
		return joinNonEmpty(first, second), joinNonEmpty(firstSurname, secondSurname), true

	case LayoutTwoColumn:
		given, surnames = row.at(0).String(), row.at(1).String()
		if given == "" || surnames == "" {
			return "", "", false
		}
		return given, surnames, true

	case LayoutSingleColumn:
		given, surnames = SplitFullName(row.at(0).String())
		if given == "" {
			return "", "", false
		}
		return given, surnames, true
	}
	return "", "", false
}

// SplitFullName splits a full name into given names and surnames:
//   1 token:  all given names, no surname
//   2 tokens: one given name, one surname
//   3 tokens: one given name, compound surname
//   4+:       halves, the given names taking floor(n/2) tokens
func SplitFullName(fullName string) (given, surnames string) {
	tokens := strings.Fields(fullName)
	switch n := len(tokens); n {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	case 2:
		return tokens[0], tokens[1]
	case 3:
		return tokens[0], tokens[1] + " " + tokens[2]
	default:
		mid := n / 2
		return strings.Join(tokens[:mid], " "), strings.Join(tokens[mid:], " ")
	}
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
