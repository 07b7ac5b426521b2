package roster

import "testing"

func TestDetectLayout(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want ColumnLayout
	}{
		{name: "no cells", row: Row{}, want: LayoutInvalid},
		{name: "nil row", row: nil, want: LayoutInvalid},
		{name: "one cell", row: RowOf("Juan Perez"), want: LayoutSingleColumn},
		{name: "one missing cell", row: Row{Missing}, want: LayoutSingleColumn},
		{name: "two cells", row: RowOf("Juan", "Perez"), want: LayoutTwoColumn},
		{name: "three cells", row: RowOf("Juan", "", "Perez"), want: LayoutFourColumn},
		{name: "four cells", row: RowOf("Juan", "", "Perez", "Diaz"), want: LayoutFourColumn},
		{name: "six cells", row: RowOf("a", "b", "c", "d", "e", "f"), want: LayoutFourColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLayout(tt.row); got != tt.want {
				t.Errorf("DetectLayout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		fullName     string
		wantGiven    string
		wantSurnames string
	}{
		{"", "", ""},
		{"   ", "", ""},
		{"Cher", "Cher", ""},
		{"Juan Perez", "Juan", "Perez"},
		{"Juan Perez Garcia", "Juan", "Perez Garcia"},
		{"Ana Maria Gomez Torres", "Ana Maria", "Gomez Torres"},
		{"Ana Maria Gomez de Torres", "Ana Maria", "Gomez de Torres"},
		{"a b c d e f", "a b c", "d e f"},
		{"  Juan \t  Perez  ", "Juan", "Perez"},
	}
	for _, tt := range tests {
		t.Run(tt.fullName, func(t *testing.T) {
			given, surnames := SplitFullName(tt.fullName)
			if given != tt.wantGiven || surnames != tt.wantSurnames {
				t.Errorf("SplitFullName() = (%q, %q), want (%q, %q)", given, surnames, tt.wantGiven, tt.wantSurnames)
			}
		})
	}
}

func TestColumnLayout_String(t *testing.T) {
	if got := LayoutTwoColumn.String(); got != "two-column" {
		t.Errorf("String() = %q", got)
	}
	if got := ColumnLayout(42).String(); got != "invalid" {
		t.Errorf("String() = %q", got)
	}
}

func TestCell(t *testing.T) {
	if Missing.Present() || Missing.String() != "" {
		t.Error("Missing must be absent and empty")
	}
	if c := Text("  x "); !c.Present() || c.String() != "x" {
		t.Errorf("Text() = %+v", c)
	}
	if c := Text(""); !c.Present() || c.String() != "" {
		t.Errorf("Text(\"\") = %+v", c)
	}
}
