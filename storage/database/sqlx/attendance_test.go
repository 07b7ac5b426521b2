package sqlxrepos

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/roster"
)

var entryRowColumns = []string{
	"id", "list_id", "present", "origin", "original_order", "marked_by", "marked_at", "created_at",
	"student_id", "given_names", "surnames", "dni", "phone", "student_created_at",
}

func newMockRepo(t *testing.T) (attendance.Repository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAttendanceRepository(db), mock, db
}

func TestAttendanceRepository_CreateList(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_lists (id,name,date,created_at,updated_at) VALUES ($1,$2,$3,$4,$5)")).
		WithArgs(sqlmock.AnyArg(), "Cálculo I", "2026-03-09", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	list, err := repo.CreateList(context.Background(), attendance.List{Name: "Cálculo I", Date: "2026-03-09", CreatedAt: now, UpdatedAt: now})
	require.NoError(t, err)
	assert.NotEmpty(t, list.ID)
	assert.Equal(t, "Cálculo I", list.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_QueryLists(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	rows := sqlmock.NewRows(listColumns).
		AddRow("l1", "Cálculo I", date, now, now).
		AddRow("l2", "Cálculo II", date.AddDate(0, 0, -1), now, now)
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT id, name, date, created_at, updated_at FROM attendance_lists WHERE name ILIKE $1 ORDER BY date DESC, created_at DESC, id ASC",
	)).WithArgs("%cálculo%").WillReturnRows(rows)

	lists, err := repo.QueryLists(
		context.Background(),
		attendance.ListFilter{Search: "cálculo"},
		[]core.DBOrdering{{Field: "date"}, {Field: "created_at"}, {Field: "name; DROP TABLE students"}},
	)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "l1", lists[0].ID)
	assert.Equal(t, "2026-03-09", lists[0].Date)
	assert.Equal(t, "2026-03-08", lists[1].Date)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_GetList_notFound(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
	}{
		{
			name: "no rows",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM attendance_lists WHERE id = ").
					WithArgs("missing").
					WillReturnRows(sqlmock.NewRows(listColumns))
			},
		},
		{
			name: "malformed id",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT (.+) FROM attendance_lists WHERE id = ").
					WithArgs("missing").
					WillReturnError(&pq.Error{Code: invalidTextRepr})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newMockRepo(t)
			tt.expect(mock)

			_, err := repo.GetList(context.Background(), "missing")
			assert.Equal(t, attendance.ErrListNotFound, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_DeleteList(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_lists WHERE id = $1")).
		WithArgs("l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM attendance_lists WHERE id = $1")).
		WithArgs("l1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteList(context.Background(), "l1"))
	assert.Equal(t, attendance.ErrListNotFound, repo.DeleteList(context.Background(), "l1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_GetStudentByName(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()

	query := regexp.QuoteMeta(
		"SELECT id, given_names, surnames, dni, phone, created_at FROM students " +
			"WHERE LOWER(given_names) = LOWER($1) AND LOWER(surnames) = LOWER($2) " +
			"ORDER BY created_at ASC LIMIT 1",
	)
	mock.ExpectQuery(query).
		WithArgs("Maria", "Garcia").
		WillReturnRows(sqlmock.NewRows(studentColumns).AddRow("s1", "María", "García", "12345678", nil, now))
	mock.ExpectQuery(query).
		WithArgs("Nadie", "Nunca").
		WillReturnRows(sqlmock.NewRows(studentColumns))

	s, err := repo.GetStudentByName(context.Background(), "Maria", "Garcia")
	require.NoError(t, err)
	assert.Equal(t, attendance.Student{ID: "s1", GivenNames: "María", Surnames: "García", DNI: "12345678", CreatedAt: now}, s)

	_, err = repo.GetStudentByName(context.Background(), "Nadie", "Nunca")
	assert.Equal(t, attendance.ErrStudentNotFound, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpdateStudent(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE students SET given_names = $1, surnames = $2, dni = $3, phone = $4 WHERE id = $5 RETURNING id, given_names, surnames, dni, phone, created_at",
	)).
		WithArgs("Ana", "Gomez", sqlmock.AnyArg(), sqlmock.AnyArg(), "s1").
		WillReturnRows(sqlmock.NewRows(studentColumns).AddRow("s1", "Ana", "Gomez", nil, "987654321", now))

	s, err := repo.UpdateStudent(context.Background(), attendance.Student{ID: "s1", GivenNames: "Ana", Surnames: "Gomez", Phone: "987654321"})
	require.NoError(t, err)
	assert.Equal(t, "", s.DNI)
	assert.Equal(t, "987654321", s.Phone)
	assert.Equal(t, now, s.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_DeleteOrphanStudents(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	n, err := repo.DeleteOrphanStudents(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(regexp.QuoteMeta(
		"DELETE FROM students WHERE id IN ($1,$2) AND NOT EXISTS (SELECT 1 FROM list_students ls WHERE ls.student_id = students.id)",
	)).
		WithArgs("s1", "s2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err = repo.DeleteOrphanStudents(context.Background(), []string{"s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_CreateEntry(t *testing.T) {
	entry := attendance.Entry{
		ListID:        "l1",
		Student:       attendance.Student{ID: "s1", GivenNames: "Ana", Surnames: "Gomez"},
		Origin:        attendance.OriginSpreadsheet,
		OriginalOrder: 3,
		CreatedAt:     time.Now(),
	}
	insert := regexp.QuoteMeta(
		"INSERT INTO list_students (id,list_id,student_id,present,origin,original_order,marked_by,marked_at,created_at) " +
			"VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT (list_id, student_id) DO NOTHING",
	)

	tests := []struct {
		name    string
		res     driver.Result
		err     error
		wantErr error
	}{
		{name: "inserted", res: sqlmock.NewResult(0, 1)},
		{name: "already in list", res: sqlmock.NewResult(0, 0), wantErr: attendance.ErrAlreadyInList},
		{
			name:    "unknown student",
			err:     &pq.Error{Code: foreignKeyViolation, Constraint: "list_students_student_id_fkey"},
			wantErr: attendance.ErrStudentNotFound,
		},
		{
			name:    "unknown list",
			err:     &pq.Error{Code: foreignKeyViolation, Constraint: "list_students_list_id_fkey"},
			wantErr: attendance.ErrListNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, _ := newMockRepo(t)
			exp := mock.ExpectExec(insert).WithArgs(
				sqlmock.AnyArg(), "l1", "s1", false, "spreadsheet", 3, nil, nil, sqlmock.AnyArg(),
			)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(tt.res)
			}

			got, err := repo.CreateEntry(context.Background(), entry)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, got.ID)
				assert.Equal(t, entry.Student, got.Student)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAttendanceRepository_QueryEntries(t *testing.T) {
	repo, mock, _ := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		"FROM list_students ls JOIN students s ON s.id = ls.student_id WHERE ls.list_id = $1 ORDER BY ls.original_order ASC, ls.created_at ASC, ls.id ASC",
	)).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows(entryRowColumns).
			AddRow("e1", "l1", true, "spreadsheet", 1, "prof@utp.edu.pe", now, now, "s1", "Ana", "Gomez", "12345678", nil, now).
			AddRow("e2", "l1", false, "manual", 2, nil, nil, now, "s2", "Luis", "Quispe", nil, nil, now))

	entries, err := repo.QueryEntries(context.Background(), "l1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "e1", entries[0].ID)
	assert.Equal(t, "Ana", entries[0].Student.GivenNames)
	assert.Equal(t, "12345678", entries[0].Student.DNI)
	assert.Equal(t, "prof@utp.edu.pe", entries[0].MarkedBy)
	require.NotNil(t, entries[0].MarkedAt)
	assert.Equal(t, now, *entries[0].MarkedAt)

	assert.Equal(t, attendance.OriginManual, entries[1].Origin)
	assert.Empty(t, entries[1].MarkedBy)
	assert.Nil(t, entries[1].MarkedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_UpdateEntryAttendance(t *testing.T) {
	update := regexp.QuoteMeta("UPDATE list_students SET present = $1, marked_by = $2, marked_at = $3 WHERE id = $4 AND list_id = $5")
	now := time.Now().UTC()

	t.Run("updated", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectExec(update).
			WithArgs(true, "prof@utp.edu.pe", sqlmock.AnyArg(), "e1", "l1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE ls.id = $1 AND ls.list_id = $2")).
			WithArgs("e1", "l1").
			WillReturnRows(sqlmock.NewRows(entryRowColumns).
				AddRow("e1", "l1", true, "spreadsheet", 1, "prof@utp.edu.pe", now, now, "s1", "Ana", "Gomez", nil, nil, now))
		mock.ExpectCommit()

		tx, err := db.Begin()
		require.NoError(t, err)
		entry, err := repo.UpdateEntryAttendance(context.Background(), attendance.Entry{
			ID: "e1", ListID: "l1", Present: true, MarkedBy: "prof@utp.edu.pe", MarkedAt: &now,
		}, tx)
		require.NoError(t, err)
		require.NoError(t, tx.Commit())

		assert.True(t, entry.Present)
		assert.Equal(t, "Ana", entry.Student.GivenNames)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not in list", func(t *testing.T) {
		repo, mock, _ := newMockRepo(t)

		mock.ExpectExec(update).
			WithArgs(false, nil, nil, "e1", "l2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.UpdateEntryAttendance(context.Background(), attendance.Entry{ID: "e1", ListID: "l2"})
		assert.Equal(t, attendance.ErrEntryNotFound, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAttendanceRepository_DeleteEntry(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM list_students WHERE id = $1 AND list_id = $2")).
		WithArgs("e1", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, attendance.ErrEntryNotFound, repo.DeleteEntry(context.Background(), "l1", "e1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepository_MaxOriginalOrder(t *testing.T) {
	repo, mock, _ := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(original_order), 0) FROM list_students WHERE list_id = $1")).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7))

	n, err := repo.MaxOriginalOrder(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ImportRoster_alreadyInListKeepsTransaction(t *testing.T) {
	repo, mock, db := newMockRepo(t)
	svc := attendance.NewService(db, repo, nil, nil, nil, core.NewTestConfig())
	date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	byName := regexp.QuoteMeta("FROM students WHERE LOWER(given_names) = LOWER($1) AND LOWER(surnames) = LOWER($2)")
	insertEntry := regexp.QuoteMeta("INSERT INTO list_students")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_lists WHERE id = $1")).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows(listColumns).AddRow("l1", "Cálculo I", date, now, now))
	mock.ExpectQuery(byName).
		WithArgs("Ana", "Gomez").
		WillReturnRows(sqlmock.NewRows(studentColumns).AddRow("s1", "Ana", "Gomez", nil, nil, now))
	mock.ExpectExec(insertEntry).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(byName).
		WithArgs("Luis", "Rojas").
		WillReturnRows(sqlmock.NewRows(studentColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertEntry).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := svc.ImportRoster(context.Background(), "l1", roster.Result{Records: []roster.Record{
		{GivenNames: "Ana", Surnames: "Gomez", OriginalOrder: 1},
		{GivenNames: "Luis", Surnames: "Rojas", OriginalOrder: 2},
	}})
	require.NoError(t, err)
	assert.Equal(t, attendance.ImportResult{Imported: 1, AlreadyInList: 1}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_ImportRoster_transaction(t *testing.T) {
	recs := roster.Result{Records: []roster.Record{{GivenNames: "Ana", Surnames: "Gomez", OriginalOrder: 1}}}

	t.Run("rolled back on error", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)
		svc := attendance.NewService(db, repo, nil, nil, nil, core.NewTestConfig())

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_lists WHERE id = $1")).
			WithArgs("nope").
			WillReturnRows(sqlmock.NewRows(listColumns))
		mock.ExpectRollback()

		_, err := svc.ImportRoster(context.Background(), "nope", recs)
		assert.Equal(t, attendance.ErrListNotFound, errors.Cause(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection lost on commit", func(t *testing.T) {
		repo, mock, db := newMockRepo(t)
		svc := attendance.NewService(db, repo, nil, nil, nil, core.NewTestConfig())
		date := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
		now := time.Now().UTC()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_lists WHERE id = $1")).
			WithArgs("l1").
			WillReturnRows(sqlmock.NewRows(listColumns).AddRow("l1", "Cálculo I", date, now, now))
		mock.ExpectQuery(regexp.QuoteMeta("FROM students")).
			WillReturnRows(sqlmock.NewRows(studentColumns).AddRow("s1", "Ana", "Gomez", nil, nil, now))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO list_students")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit().WillReturnError(sql.ErrConnDone)

		_, err := svc.ImportRoster(context.Background(), "l1", recs)
		require.Error(t, err)
		assert.True(t, core.IsShutdown(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
