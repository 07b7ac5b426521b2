package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

const (
	listsTable    = "attendance_lists"
	studentsTable = "students"
	entriesTable  = "list_students"

	// postgres error codes
	foreignKeyViolation = "23503"
	invalidTextRepr     = "22P02"
)

var (
	psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	listColumns    = []string{"id", "name", "date", "created_at", "updated_at"}
	studentColumns = []string{"id", "given_names", "surnames", "dni", "phone", "created_at"}
	entryColumns   = []string{
		"ls.id", "ls.list_id", "ls.present", "ls.origin", "ls.original_order", "ls.marked_by", "ls.marked_at", "ls.created_at",
		"s.id AS student_id", "s.given_names", "s.surnames", "s.dni", "s.phone", "s.created_at AS student_created_at",
	}

	// ordering fields accepted by QueryLists
	listOrderFields = map[string]bool{"name": true, "date": true, "created_at": true, "updated_at": true}
)

type (
	listRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		Date      time.Time `db:"date"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	studentRow struct {
		ID         string      `db:"id"`
		GivenNames string      `db:"given_names"`
		Surnames   string      `db:"surnames"`
		DNI        null.String `db:"dni"`
		Phone      null.String `db:"phone"`
		CreatedAt  time.Time   `db:"created_at"`
	}

	entryRow struct {
		ID               string      `db:"id"`
		ListID           string      `db:"list_id"`
		Present          bool        `db:"present"`
		Origin           string      `db:"origin"`
		OriginalOrder    int         `db:"original_order"`
		MarkedBy         null.String `db:"marked_by"`
		MarkedAt         null.Time   `db:"marked_at"`
		CreatedAt        time.Time   `db:"created_at"`
		StudentID        string      `db:"student_id"`
		GivenNames       string      `db:"given_names"`
		Surnames         string      `db:"surnames"`
		DNI              null.String `db:"dni"`
		Phone            null.String `db:"phone"`
		StudentCreatedAt time.Time   `db:"student_created_at"`
	}
)

func (r listRow) list() attendance.List {
	return attendance.List{
		ID:        r.ID,
		Name:      r.Name,
		Date:      r.Date.Format(attendance.DateLayout),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r studentRow) student() attendance.Student {
	return attendance.Student{
		ID:         r.ID,
		GivenNames: r.GivenNames,
		Surnames:   r.Surnames,
		DNI:        r.DNI.String,
		Phone:      r.Phone.String,
		CreatedAt:  r.CreatedAt,
	}
}

func (r entryRow) entry() attendance.Entry {
	return attendance.Entry{
		ID:     r.ID,
		ListID: r.ListID,
		Student: studentRow{
			ID:         r.StudentID,
			GivenNames: r.GivenNames,
			Surnames:   r.Surnames,
			DNI:        r.DNI,
			Phone:      r.Phone,
			CreatedAt:  r.StudentCreatedAt,
		}.student(),
		Present:       r.Present,
		Origin:        attendance.Origin(r.Origin),
		OriginalOrder: r.OriginalOrder,
		MarkedBy:      r.MarkedBy.String,
		MarkedAt:      r.MarkedAt.Ptr(),
		CreatedAt:     r.CreatedAt,
	}
}

type attendanceRepository struct {
	exec core.DBExecutor
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{exec: exec}
}

func (repo attendanceRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return repo.exec
}

// trapNotFound maps "no rows" and malformed UUIDs to notFound
func trapNotFound(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == invalidTextRepr {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// query runs a select built with squirrel and scans every row into dest, a pointer to a slice.
func (repo attendanceRepository) query(ctx context.Context, exec core.DBExecutor, b squirrel.Sqlizer, dest interface{}) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	rows, err := exec.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(rows, dest)
}

// execAffected runs a statement built with squirrel and returns the number of affected rows.
func (repo attendanceRepository) execAffected(ctx context.Context, exec core.DBExecutor, b squirrel.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Lists

func (repo attendanceRepository) CreateList(ctx context.Context, list attendance.List, exec ...core.DBExecutor) (attendance.List, error) {
	list.ID = uuid.New().String()
	_, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Insert(listsTable).
		Columns(listColumns...).
		Values(list.ID, list.Name, list.Date, list.CreatedAt.UTC(), list.UpdatedAt.UTC()))
	if err != nil {
		return attendance.List{}, errors.Wrap(err, "inserting list")
	}
	return list, nil
}

func (repo attendanceRepository) QueryLists(
	ctx context.Context,
	filter attendance.ListFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]attendance.List, error) {
	b := psql.Select(listColumns...).From(listsTable)
	if filter.Search != "" {
		b = b.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	for _, ord := range ordering {
		if listOrderFields[ord.Field] {
			b = b.OrderBy(ord.String())
		}
	}
	b = b.OrderBy("id ASC")

	var rows []listRow
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return nil, errors.Wrap(err, "querying lists")
	}
	lists := make([]attendance.List, 0, len(rows))
	for _, r := range rows {
		lists = append(lists, r.list())
	}
	return lists, nil
}

func (repo attendanceRepository) GetList(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.List, error) {
	var rows []listRow
	b := psql.Select(listColumns...).From(listsTable).Where(squirrel.Eq{"id": id})
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return attendance.List{}, trapNotFound(err, attendance.ErrListNotFound, "getting list")
	}
	if len(rows) == 0 {
		return attendance.List{}, attendance.ErrListNotFound
	}
	return rows[0].list(), nil
}

func (repo attendanceRepository) DeleteList(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := repo.execAffected(ctx, repo.getExec(exec), psql.Delete(listsTable).Where(squirrel.Eq{"id": id}))
	if err != nil {
		return trapNotFound(err, attendance.ErrListNotFound, "deleting list")
	}
	if n == 0 {
		return attendance.ErrListNotFound
	}
	return nil
}

// Students

func (repo attendanceRepository) CreateStudent(ctx context.Context, student attendance.Student, exec ...core.DBExecutor) (attendance.Student, error) {
	student.ID = uuid.New().String()
	_, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Insert(studentsTable).
		Columns(studentColumns...).
		Values(
			student.ID,
			student.GivenNames,
			student.Surnames,
			null.NewString(student.DNI, student.DNI != ""),
			null.NewString(student.Phone, student.Phone != ""),
			student.CreatedAt.UTC(),
		))
	if err != nil {
		return attendance.Student{}, errors.Wrap(err, "inserting student")
	}
	return student, nil
}

// GetStudentByName matches case-insensitively. Names are stored with collapsed spaces, so the lookup can use students_name_idx.
func (repo attendanceRepository) GetStudentByName(ctx context.Context, givenNames, surnames string, exec ...core.DBExecutor) (attendance.Student, error) {
	b := psql.Select(studentColumns...).
		From(studentsTable).
		Where("LOWER(given_names) = LOWER(?)", givenNames).
		Where("LOWER(surnames) = LOWER(?)", surnames).
		OrderBy("created_at ASC").
		Limit(1)

	var rows []studentRow
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return attendance.Student{}, errors.Wrap(err, "getting student by name")
	}
	if len(rows) == 0 {
		return attendance.Student{}, attendance.ErrStudentNotFound
	}
	return rows[0].student(), nil
}

func (repo attendanceRepository) UpdateStudent(ctx context.Context, student attendance.Student, exec ...core.DBExecutor) (attendance.Student, error) {
	b := psql.Update(studentsTable).
		Set("given_names", student.GivenNames).
		Set("surnames", student.Surnames).
		Set("dni", null.NewString(student.DNI, student.DNI != "")).
		Set("phone", null.NewString(student.Phone, student.Phone != "")).
		Where(squirrel.Eq{"id": student.ID}).
		Suffix("RETURNING " + strings.Join(studentColumns, ", "))

	var rows []studentRow
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return attendance.Student{}, trapNotFound(err, attendance.ErrStudentNotFound, "updating student")
	}
	if len(rows) == 0 {
		return attendance.Student{}, attendance.ErrStudentNotFound
	}
	return rows[0].student(), nil
}

func (repo attendanceRepository) DeleteOrphanStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Delete(studentsTable).
		Where(squirrel.Eq{"id": ids}).
		Where("NOT EXISTS (SELECT 1 FROM " + entriesTable + " ls WHERE ls.student_id = " + studentsTable + ".id)"))
	if err != nil {
		return 0, errors.Wrap(err, "deleting orphan students")
	}
	return int(n), nil
}

// Entries

func (repo attendanceRepository) selectEntries() squirrel.SelectBuilder {
	return psql.Select(entryColumns...).
		From(entriesTable + " ls").
		Join(studentsTable + " s ON s.id = ls.student_id")
}

// CreateEntry inserts the entry unless the student is already on the list. The conflict is absorbed by the
// insert itself so that an enclosing transaction stays usable.
func (repo attendanceRepository) CreateEntry(ctx context.Context, entry attendance.Entry, exec ...core.DBExecutor) (attendance.Entry, error) {
	entry.ID = uuid.New().String()
	n, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Insert(entriesTable).
		Columns("id", "list_id", "student_id", "present", "origin", "original_order", "marked_by", "marked_at", "created_at").
		Values(
			entry.ID,
			entry.ListID,
			entry.Student.ID,
			entry.Present,
			string(entry.Origin),
			entry.OriginalOrder,
			null.NewString(entry.MarkedBy, entry.MarkedBy != ""),
			null.TimeFromPtr(entry.MarkedAt),
			entry.CreatedAt.UTC(),
		).
		Suffix("ON CONFLICT (list_id, student_id) DO NOTHING"))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			if strings.Contains(pqErr.Constraint, "student") {
				return attendance.Entry{}, attendance.ErrStudentNotFound
			}
			return attendance.Entry{}, attendance.ErrListNotFound
		}
		return attendance.Entry{}, errors.Wrap(err, "inserting entry")
	}
	if n == 0 {
		return attendance.Entry{}, attendance.ErrAlreadyInList
	}
	return entry, nil
}

func (repo attendanceRepository) GetEntry(ctx context.Context, listID, entryID string, exec ...core.DBExecutor) (attendance.Entry, error) {
	b := repo.selectEntries().Where(squirrel.Eq{"ls.id": entryID, "ls.list_id": listID})

	var rows []entryRow
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return attendance.Entry{}, trapNotFound(err, attendance.ErrEntryNotFound, "getting entry")
	}
	if len(rows) == 0 {
		return attendance.Entry{}, attendance.ErrEntryNotFound
	}
	return rows[0].entry(), nil
}

func (repo attendanceRepository) QueryEntries(ctx context.Context, listID string, exec ...core.DBExecutor) ([]attendance.Entry, error) {
	b := repo.selectEntries().
		Where(squirrel.Eq{"ls.list_id": listID}).
		OrderBy("ls.original_order ASC", "ls.created_at ASC", "ls.id ASC")

	var rows []entryRow
	if err := repo.query(ctx, repo.getExec(exec), b, &rows); err != nil {
		return nil, trapNotFound(err, attendance.ErrListNotFound, "querying entries")
	}
	entries := make([]attendance.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (repo attendanceRepository) UpdateEntryAttendance(ctx context.Context, entry attendance.Entry, exec ...core.DBExecutor) (attendance.Entry, error) {
	n, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Update(entriesTable).
		Set("present", entry.Present).
		Set("marked_by", null.NewString(entry.MarkedBy, entry.MarkedBy != "")).
		Set("marked_at", null.TimeFromPtr(entry.MarkedAt)).
		Where(squirrel.Eq{"id": entry.ID, "list_id": entry.ListID}))
	if err != nil {
		return attendance.Entry{}, trapNotFound(err, attendance.ErrEntryNotFound, "updating entry")
	}
	if n == 0 {
		return attendance.Entry{}, attendance.ErrEntryNotFound
	}
	return repo.GetEntry(ctx, entry.ListID, entry.ID, exec...)
}

func (repo attendanceRepository) DeleteEntry(ctx context.Context, listID, entryID string, exec ...core.DBExecutor) error {
	n, err := repo.execAffected(ctx, repo.getExec(exec), psql.
		Delete(entriesTable).
		Where(squirrel.Eq{"id": entryID, "list_id": listID}))
	if err != nil {
		return trapNotFound(err, attendance.ErrEntryNotFound, "deleting entry")
	}
	if n == 0 {
		return attendance.ErrEntryNotFound
	}
	return nil
}

func (repo attendanceRepository) MaxOriginalOrder(ctx context.Context, listID string, exec ...core.DBExecutor) (int, error) {
	q, args, err := psql.
		Select("COALESCE(MAX(original_order), 0)").
		From(entriesTable).
		Where(squirrel.Eq{"list_id": listID}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}

	var maxOrder int
	if err = repo.getExec(exec).QueryRowContext(ctx, q, args...).Scan(&maxOrder); err != nil {
		return 0, trapNotFound(err, attendance.ErrListNotFound, "getting max original order")
	}
	return maxOrder, nil
}
