package attendance

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/roster"
)

// DateLayout is the layout of List.Date.
const DateLayout = "2006-01-02"

// Origin tells how a student got into a list.
type Origin string

const (
	OriginSpreadsheet Origin = "spreadsheet"
	OriginManual      Origin = "manual"
)

// Label is the name shown in exports.
func (o Origin) Label() string {
	if o == OriginManual {
		return "Manual"
	}
	return "Excel"
}

type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"` // YYYY-MM-DD
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Student struct {
	ID         string    `json:"id"`
	GivenNames string    `json:"given_names"`
	Surnames   string    `json:"surnames"`
	DNI        string    `json:"dni,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s Student) FullName() string {
	return strings.TrimSpace(s.GivenNames + " " + s.Surnames)
}

// NameKey matches students by name regardless of case and spacing.
func (s Student) NameKey() string {
	return roster.DuplicateKey(s.GivenNames, s.Surnames)
}

// Entry is a Student on a List.
type Entry struct {
	ID            string     `json:"id"`
	ListID        string     `json:"list_id"`
	Student       Student    `json:"student"`
	Present       bool       `json:"present"`
	Origin        Origin     `json:"origin"`
	OriginalOrder int        `json:"original_order"`
	MarkedBy      string     `json:"marked_by,omitempty"`
	MarkedAt      *time.Time `json:"marked_at,omitempty"` // UTC
	CreatedAt     time.Time  `json:"created_at"`          // UTC
}

// Instructor is the authenticated user behind a request.
type Instructor struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Label is what gets recorded as Entry.MarkedBy.
func (i Instructor) Label() string {
	if i.Email != "" {
		return i.Email
	}
	return i.ID
}

// NewList contains information needed to create a new List.
type NewList struct {
	Name string `json:"name" validate:"required,notblank,max=120"`
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (nl *NewList) Validate(validate *validator.Validate) error {
	nl.Name = core.CollapseSpaces(nl.Name)
	nl.Date = core.CleanString(nl.Date)
	return validate.Struct(nl)
}

// NewStudent contains information needed to add a student by hand.
type NewStudent struct {
	GivenNames string `json:"given_names" validate:"required,notblank,max=120"`
	Surnames   string `json:"surnames" validate:"required,notblank,max=120"`
	DNI        string `json:"dni" validate:"omitempty,dni"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.GivenNames = core.CollapseSpaces(ns.GivenNames)
	ns.Surnames = core.CollapseSpaces(ns.Surnames)
	ns.DNI = core.CleanString(ns.DNI)
	ns.Phone = core.CleanString(ns.Phone)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	ns.DNI = core.DigitsOnly(ns.DNI)
	ns.Phone = core.DigitsOnly(ns.Phone)
	return nil
}

// UpdateStudent defines what may be changed on an existing Student.
// Empty names keep the current ones; nil DNI/Phone keep the current value, "" clears it.
type UpdateStudent struct {
	GivenNames string  `json:"given_names" validate:"max=120"`
	Surnames   string  `json:"surnames" validate:"max=120"`
	DNI        *string `json:"dni" validate:"omitempty,dni"`
	Phone      *string `json:"phone" validate:"omitempty,phone"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.GivenNames = core.CollapseSpaces(us.GivenNames)
	us.Surnames = core.CollapseSpaces(us.Surnames)
	if err := validate.Struct(us); err != nil {
		return err
	}
	us.DNI = digitsPtr(us.DNI)
	us.Phone = digitsPtr(us.Phone)
	return nil
}

func (us UpdateStudent) apply(s Student) Student {
	if us.GivenNames != "" {
		s.GivenNames = us.GivenNames
	}
	if us.Surnames != "" {
		s.Surnames = us.Surnames
	}
	if us.DNI != nil {
		s.DNI = *us.DNI
	}
	if us.Phone != nil {
		s.Phone = *us.Phone
	}
	return s
}

func digitsPtr(s *string) *string {
	if s == nil {
		return nil
	}
	d := core.DigitsOnly(*s)
	return &d
}

type ListFilter struct {
	Search string `query:"search"`
}

func (f *ListFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)
}

// Roster views
const (
	AttendanceAll     = "all"
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"

	OrderOriginal     = "original"
	OrderAlphabetical = "alphabetical"
)

type RosterFilter struct {
	Search     string `query:"search"`     // given names, surnames or DNI
	Attendance string `query:"attendance"` // all | present | absent
	Order      string `query:"order"`      // original | alphabetical
}

// Clean falls back to the defaults for unknown values.
func (f *RosterFilter) Clean() {
	f.Search = core.CleanString(f.Search, true /* lower */)

	switch f.Attendance = core.CleanString(f.Attendance, true); f.Attendance {
	case AttendancePresent, AttendanceAbsent:
	default:
		f.Attendance = AttendanceAll
	}

	switch f.Order = core.CleanString(f.Order, true); f.Order {
	case OrderAlphabetical:
	default:
		f.Order = OrderOriginal
	}
}

// ImportResult reports what happened to an uploaded roster.
type ImportResult struct {
	Imported          int `json:"imported"`
	AlreadyInList     int `json:"already_in_list"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
}
