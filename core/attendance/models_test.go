package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/asistencia/core"
)

func strPtr(s string) *string { return &s }

func TestNewStudent_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	ns := NewStudent{GivenNames: "  Ana   Maria ", Surnames: "Gomez  Torres", DNI: "12.345.678", Phone: "987 654 321"}
	require.NoError(t, ns.Validate(validate))
	assert.Equal(t, NewStudent{GivenNames: "Ana Maria", Surnames: "Gomez Torres", DNI: "12345678", Phone: "987654321"}, ns)

	ns = NewStudent{GivenNames: "Ana", Surnames: "  ", DNI: "1234"}
	assert.Error(t, ns.Validate(validate))
}

func TestUpdateStudent_apply(t *testing.T) {
	validate, _ := core.NewValidator()
	s := Student{ID: "s1", GivenNames: "Ana", Surnames: "Gomez", DNI: "12345678", Phone: "987654321"}

	tests := []struct {
		name string
		us   UpdateStudent
		want Student
	}{
		{name: "nothing", want: s},
		{
			name: "names",
			us:   UpdateStudent{GivenNames: " Ana  Maria", Surnames: "Gomez Torres"},
			want: Student{ID: "s1", GivenNames: "Ana Maria", Surnames: "Gomez Torres", DNI: "12345678", Phone: "987654321"},
		},
		{
			name: "clear DNI, change phone",
			us:   UpdateStudent{DNI: strPtr(""), Phone: strPtr("912-345-678")},
			want: Student{ID: "s1", GivenNames: "Ana", Surnames: "Gomez", Phone: "912345678"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := tt.us
			require.NoError(t, us.Validate(validate))
			assert.Equal(t, tt.want, us.apply(s))
		})
	}

	us := UpdateStudent{DNI: strPtr("123")}
	assert.Error(t, us.Validate(validate))
}

func TestNewList_Validate(t *testing.T) {
	validate, _ := core.NewValidator()

	nl := NewList{Name: "  Cálculo   I ", Date: " 2026-03-09 "}
	require.NoError(t, nl.Validate(validate))
	assert.Equal(t, NewList{Name: "Cálculo I", Date: "2026-03-09"}, nl)

	nl = NewList{Name: "Cálculo I", Date: "09/03/2026"}
	assert.Error(t, nl.Validate(validate))
}

func TestRosterFilter_Clean(t *testing.T) {
	f := RosterFilter{Search: " GÓMEZ ", Attendance: "PRESENT", Order: "nope"}
	f.Clean()
	assert.Equal(t, RosterFilter{Search: "gómez", Attendance: AttendancePresent, Order: OrderOriginal}, f)
}

func TestSortOriginal(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{ID: "c", OriginalOrder: 2},
		{ID: "b", OriginalOrder: 1, CreatedAt: now.Add(time.Second)},
		{ID: "a", OriginalOrder: 1, CreatedAt: now},
	}
	SortOriginal(entries)
	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "b", entries[1].ID)
	assert.Equal(t, "c", entries[2].ID)
}

func TestSummarize_empty(t *testing.T) {
	sum := Summarize(nil)
	assert.Equal(t, Summary{ByMarker: []MarkerCount{}}, sum)
}
