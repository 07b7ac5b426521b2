package attendance

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/roster"
)

var (
	// errors
	ErrListNotFound    = errors.New("attendance list not found")
	ErrEntryNotFound   = errors.New("student not found in this list")
	ErrStudentNotFound = errors.New("student not found")
	ErrAlreadyInList   = errors.New("the student is already in this list")
)

type (
	Repository interface {
		CreateList(ctx context.Context, list List, exec ...core.DBExecutor) (List, error)
		// QueryLists does a case-insensitive match of ListFilter.Search on List.Name.
		QueryLists(ctx context.Context, filter ListFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]List, error)
		GetList(ctx context.Context, id string, exec ...core.DBExecutor) (List, error)
		// DeleteList deletes the list along with its entries.
		DeleteList(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)
		// GetStudentByName matches trimmed names case-insensitively.
		GetStudentByName(ctx context.Context, givenNames, surnames string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, student Student, exec ...core.DBExecutor) (Student, error)
		// DeleteOrphanStudents deletes the students among ids that belong to no list anymore.
		DeleteOrphanStudents(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		// CreateEntry returns ErrAlreadyInList when the student is already on the list.
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		GetEntry(ctx context.Context, listID, entryID string, exec ...core.DBExecutor) (Entry, error)
		// QueryEntries returns the entries of a list ordered by OriginalOrder then CreatedAt.
		QueryEntries(ctx context.Context, listID string, exec ...core.DBExecutor) ([]Entry, error)
		UpdateEntryAttendance(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		DeleteEntry(ctx context.Context, listID, entryID string, exec ...core.DBExecutor) error
		MaxOriginalOrder(ctx context.Context, listID string, exec ...core.DBExecutor) (int, error)
	}

	// FileReader decodes an uploaded file into the rows of its first sheet, header included.
	FileReader interface {
		Read(filename string, size int64, r io.Reader) ([]roster.Row, error)
	}

	// Report is everything an export needs.
	Report struct {
		List        List
		Entries     []Entry
		Summary     Summary
		GeneratedAt time.Time
	}

	// Renderer writes a Report as a file.
	Renderer interface {
		Render(w io.Writer, report Report) error
		Filename(report Report) string
		ContentType() string
	}

	Service struct {
		db       core.DB // nil when the repository is not SQL-backed
		repo     Repository
		reader   FileReader
		renderer Renderer // emailed reports
		mailSvc  core.EmailService
		conf     *core.Config
		nowFunc  func() time.Time
	}
)

func NewService(
	db core.DB,
	repo Repository,
	reader FileReader,
	renderer Renderer,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		reader:   reader,
		renderer: renderer,
		mailSvc:  mailSvc,
		conf:     conf,
		nowFunc:  time.Now,
	}
}

func (svc *Service) now() time.Time { return svc.nowFunc().UTC() }

// atomicRepository is implemented by repositories that are not SQL-backed but can undo a batch of writes.
type atomicRepository interface {
	Atomically(fn func() error) error
}

// inTx runs fn inside a transaction: a SQL one when the repository is SQL-backed, the repository's own otherwise.
func (svc *Service) inTx(ctx context.Context, fn func(exec ...core.DBExecutor) error) error {
	if svc.db == nil {
		if repo, ok := svc.repo.(atomicRepository); ok {
			return repo.Atomically(func() error { return fn() })
		}
		return fn()
	}

	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	return finishTx(tx, fn(tx))
}

// finishTx commits tx, or rolls it back when fnErr is set.
// Losing the connection at commit leaves the outcome unknown, which is reported as a shutdown.
func finishTx(tx core.DBTransactor, fnErr error) error {
	if fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(fnErr, "rolling back: %v", rbErr)
		}
		return fnErr
	}

	err := tx.Commit()
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return core.NewShutdownError(fmt.Sprintf("committing transaction: %v", err))
	}
	return errors.Wrap(err, "committing transaction")
}

// Lists

func (svc *Service) CreateList(ctx context.Context, nl NewList) (List, error) {
	now := svc.now()
	date := nl.Date
	if date == "" {
		date = now.Format(DateLayout)
	}
	list := List{
		Name:      nl.Name,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateList(ctx, list)
}

func (svc *Service) QueryLists(ctx context.Context, filter ListFilter, ordering []core.DBOrdering) ([]List, error) {
	filter.Clean()
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "date"}, {Field: "created_at"}}
	}
	return svc.repo.QueryLists(ctx, filter, ordering)
}

func (svc *Service) GetList(ctx context.Context, id string) (List, error) {
	return svc.repo.GetList(ctx, id)
}

// DeleteList deletes the list, its entries and the students left without any list.
func (svc *Service) DeleteList(ctx context.Context, id string) error {
	return svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		if _, err := svc.repo.GetList(ctx, id, exec...); err != nil {
			return err
		}
		entries, err := svc.repo.QueryEntries(ctx, id, exec...)
		if err != nil {
			return errors.Wrap(err, "querying entries")
		}
		if err = svc.repo.DeleteList(ctx, id, exec...); err != nil {
			return errors.Wrap(err, "deleting list")
		}

		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.Student.ID)
		}
		if _, err = svc.repo.DeleteOrphanStudents(ctx, ids, exec...); err != nil {
			return errors.Wrap(err, "deleting orphan students")
		}
		return nil
	})
}

// Roster

// ImportRoster stores normalized records on a list. Students are matched by name against the ones
// already stored; those already on the list are counted and skipped.
func (svc *Service) ImportRoster(ctx context.Context, listID string, res roster.Result) (ImportResult, error) {
	result := ImportResult{DuplicatesSkipped: res.DuplicatesSkipped}

	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		if _, err := svc.repo.GetList(ctx, listID, exec...); err != nil {
			return err
		}
		for _, rec := range res.Records {
			student, err := svc.findOrCreateStudent(ctx, rec.GivenNames, rec.Surnames, "", "", exec...)
			if err != nil {
				return err
			}

			entry := Entry{
				ListID:        listID,
				Student:       student,
				Origin:        OriginSpreadsheet,
				OriginalOrder: rec.OriginalOrder,
				CreatedAt:     svc.now(),
			}
			if _, err = svc.repo.CreateEntry(ctx, entry, exec...); err != nil {
				if errors.Cause(err) == ErrAlreadyInList {
					result.AlreadyInList++
					continue
				}
				return errors.Wrap(err, "creating entry")
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

// ReadFile decodes and normalizes an uploaded roster without storing anything.
func (svc *Service) ReadFile(filename string, size int64, r io.Reader) (roster.Result, error) {
	rows, err := svc.reader.Read(filename, size, r)
	if err != nil {
		return roster.Result{}, err
	}
	return roster.Normalize(rows), nil
}

// ImportFile decodes, normalizes and stores an uploaded roster.
func (svc *Service) ImportFile(ctx context.Context, listID, filename string, size int64, r io.Reader) (ImportResult, error) {
	if _, err := svc.repo.GetList(ctx, listID); err != nil {
		return ImportResult{}, err
	}
	res, err := svc.ReadFile(filename, size, r)
	if err != nil {
		return ImportResult{}, err
	}
	return svc.ImportRoster(ctx, listID, res)
}

func (svc *Service) findOrCreateStudent(ctx context.Context, given, surnames, dni, phone string, exec ...core.DBExecutor) (Student, error) {
	given, surnames = core.CollapseSpaces(given), core.CollapseSpaces(surnames)

	student, err := svc.repo.GetStudentByName(ctx, given, surnames, exec...)
	if err == nil {
		return student, nil
	}
	if errors.Cause(err) != ErrStudentNotFound {
		return Student{}, errors.Wrap(err, "finding student by name")
	}

	student, err = svc.repo.CreateStudent(ctx, Student{
		GivenNames: given,
		Surnames:   surnames,
		DNI:        dni,
		Phone:      phone,
		CreatedAt:  svc.now(),
	}, exec...)
	return student, errors.Wrap(err, "creating student")
}

// AddStudent adds a student by hand at the end of the list.
func (svc *Service) AddStudent(ctx context.Context, listID string, ns NewStudent) (Entry, error) {
	var entry Entry
	err := svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		if _, err := svc.repo.GetList(ctx, listID, exec...); err != nil {
			return err
		}
		student, err := svc.findOrCreateStudent(ctx, ns.GivenNames, ns.Surnames, ns.DNI, ns.Phone, exec...)
		if err != nil {
			return err
		}
		maxOrder, err := svc.repo.MaxOriginalOrder(ctx, listID, exec...)
		if err != nil {
			return errors.Wrap(err, "getting max original order")
		}

		entry, err = svc.repo.CreateEntry(ctx, Entry{
			ListID:        listID,
			Student:       student,
			Origin:        OriginManual,
			OriginalOrder: maxOrder + 1,
			CreatedAt:     svc.now(),
		}, exec...)
		if err != nil {
			if errors.Cause(err) == ErrAlreadyInList {
				return core.NewValidationError(ErrAlreadyInList)
			}
			return errors.Wrap(err, "creating entry")
		}
		return nil
	})
	return entry, err
}

func (svc *Service) GetEntry(ctx context.Context, listID, entryID string) (Entry, error) {
	return svc.repo.GetEntry(ctx, listID, entryID)
}

// UpdateStudent edits the student behind an entry. The change shows on every list holding them.
func (svc *Service) UpdateStudent(ctx context.Context, listID, entryID string, us UpdateStudent) (Entry, error) {
	entry, err := svc.repo.GetEntry(ctx, listID, entryID)
	if err != nil {
		return Entry{}, err
	}
	student, err := svc.repo.UpdateStudent(ctx, us.apply(entry.Student))
	if err != nil {
		return Entry{}, errors.Wrap(err, "updating student")
	}
	entry.Student = student
	return entry, nil
}

// MarkAttendance records whether the student is present. Only presence keeps track of who marked it.
func (svc *Service) MarkAttendance(ctx context.Context, listID, entryID string, present bool, by Instructor) (Entry, error) {
	entry, err := svc.repo.GetEntry(ctx, listID, entryID)
	if err != nil {
		return Entry{}, err
	}
	return svc.mark(ctx, entry, present, by)
}

// ToggleAttendance flips the attendance of the student.
func (svc *Service) ToggleAttendance(ctx context.Context, listID, entryID string, by Instructor) (Entry, error) {
	entry, err := svc.repo.GetEntry(ctx, listID, entryID)
	if err != nil {
		return Entry{}, err
	}
	return svc.mark(ctx, entry, !entry.Present, by)
}

func (svc *Service) mark(ctx context.Context, entry Entry, present bool, by Instructor) (Entry, error) {
	entry.Present = present
	if present {
		now := svc.now()
		entry.MarkedBy = by.Label()
		entry.MarkedAt = &now
	} else {
		entry.MarkedBy = ""
		entry.MarkedAt = nil
	}
	entry, err := svc.repo.UpdateEntryAttendance(ctx, entry)
	return entry, errors.Wrap(err, "updating attendance")
}

// RemoveStudent takes the student off the list, deleting them entirely when no other list holds them.
func (svc *Service) RemoveStudent(ctx context.Context, listID, entryID string) error {
	return svc.inTx(ctx, func(exec ...core.DBExecutor) error {
		entry, err := svc.repo.GetEntry(ctx, listID, entryID, exec...)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteEntry(ctx, listID, entryID, exec...); err != nil {
			return errors.Wrap(err, "deleting entry")
		}
		_, err = svc.repo.DeleteOrphanStudents(ctx, []string{entry.Student.ID}, exec...)
		return errors.Wrap(err, "deleting orphan student")
	})
}

// QueryRoster returns the entries of a list filtered and ordered as requested.
func (svc *Service) QueryRoster(ctx context.Context, listID string, filter RosterFilter) ([]Entry, error) {
	if _, err := svc.repo.GetList(ctx, listID); err != nil {
		return nil, err
	}
	entries, err := svc.repo.QueryEntries(ctx, listID)
	if err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	filter.Clean()
	return FilterRoster(entries, filter), nil
}

// Summary computes the attendance figures of the whole list.
func (svc *Service) Summary(ctx context.Context, listID string) (Summary, error) {
	if _, err := svc.repo.GetList(ctx, listID); err != nil {
		return Summary{}, err
	}
	entries, err := svc.repo.QueryEntries(ctx, listID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying entries")
	}
	return Summarize(entries), nil
}

// BuildReport gathers the roster view described by filter and the summary of the whole list.
func (svc *Service) BuildReport(ctx context.Context, listID string, filter RosterFilter) (Report, error) {
	list, err := svc.repo.GetList(ctx, listID)
	if err != nil {
		return Report{}, err
	}
	entries, err := svc.repo.QueryEntries(ctx, listID)
	if err != nil {
		return Report{}, errors.Wrap(err, "querying entries")
	}
	filter.Clean()
	return Report{
		List:        list,
		Entries:     FilterRoster(entries, filter),
		Summary:     Summarize(entries),
		GeneratedAt: svc.now(),
	}, nil
}

type reportEmailData struct {
	ListName string
	Date     string
	Summary  Summary
}

// EmailReport sends the rendered report of a list to recipients.
func (svc *Service) EmailReport(ctx context.Context, listID string, recipients []mail.Address) error {
	report, err := svc.BuildReport(ctx, listID, RosterFilter{})
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           recipients,
		Subject:      fmt.Sprintf("Reporte de asistencia - %s", report.List.Name),
		TemplateName: "attendance_report",
		TemplateData: reportEmailData{
			ListName: report.List.Name,
			Date:     report.List.Date,
			Summary:  report.Summary,
		},
	}

	pr, pw := io.Pipe()
	go func() {
		_ = pw.CloseWithError(svc.renderer.Render(pw, report))
	}()
	if err = msg.Attach(pr, svc.renderer.Filename(report), svc.renderer.ContentType()); err != nil {
		return errors.Wrap(err, "attaching report")
	}

	svc.mailSvc.SendMessages(msg)
	return nil
}
