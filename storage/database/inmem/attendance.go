package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

// NewAttendanceRepository returns a repository over db. The exec arguments of its methods are ignored.
func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

// Atomically runs fn as a transaction of the underlying DB.
func (repo *attendanceRepository) Atomically(fn func() error) error {
	return repo.db.Atomically(fn)
}

func (repo *attendanceRepository) CreateList(_ context.Context, list attendance.List, _ ...core.DBExecutor) (attendance.List, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	list.ID = uuid.New().String()
	l := list
	repo.db.lists[l.ID] = &l
	return list, repo.db.persist()
}

func (repo *attendanceRepository) QueryLists(
	_ context.Context,
	filter attendance.ListFilter,
	ordering []core.DBOrdering,
	_ ...core.DBExecutor,
) ([]attendance.List, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lists := make([]attendance.List, 0, len(repo.db.lists))
	for _, l := range repo.db.lists {
		if filter.Search != "" && !strings.Contains(strings.ToLower(l.Name), filter.Search) {
			continue
		}
		lists = append(lists, *l)
	}

	sort.SliceStable(lists, func(i, j int) bool {
		for _, ord := range ordering {
			a, b := listField(lists[i], ord.Field), listField(lists[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return lists[i].ID < lists[j].ID
	})
	return lists, nil
}

// listField returns a sortable representation of a List field. Unknown fields sort equal.
func listField(l attendance.List, field string) string {
	switch field {
	case "name":
		return strings.ToLower(l.Name)
	case "date":
		return l.Date
	case "created_at":
		return l.CreatedAt.Format("2006-01-02T15:04:05.000000000")
	case "updated_at":
		return l.UpdatedAt.Format("2006-01-02T15:04:05.000000000")
	}
	return ""
}

func (repo *attendanceRepository) GetList(_ context.Context, id string, _ ...core.DBExecutor) (attendance.List, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.lists[id]; ok {
		return *l, nil
	}
	return attendance.List{}, attendance.ErrListNotFound
}

func (repo *attendanceRepository) DeleteList(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lists[id]; !ok {
		return attendance.ErrListNotFound
	}
	delete(repo.db.lists, id)
	for eid, e := range repo.db.entries {
		if e.ListID == id {
			delete(repo.db.entries, eid)
		}
	}
	return repo.db.persist()
}

func (repo *attendanceRepository) CreateStudent(_ context.Context, student attendance.Student, _ ...core.DBExecutor) (attendance.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	student.ID = uuid.New().String()
	s := student
	repo.db.students[s.ID] = &s
	return student, repo.db.persist()
}

func (repo *attendanceRepository) GetStudentByName(_ context.Context, givenNames, surnames string, _ ...core.DBExecutor) (attendance.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	given := core.CleanString(givenNames, true /* lower */)
	sur := core.CleanString(surnames, true /* lower */)

	var found *attendance.Student
	for _, s := range repo.db.students {
		if core.CleanString(s.GivenNames, true) != given || core.CleanString(s.Surnames, true) != sur {
			continue
		}
		if found == nil || s.CreatedAt.Before(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return attendance.Student{}, attendance.ErrStudentNotFound
	}
	return *found, nil
}

func (repo *attendanceRepository) UpdateStudent(_ context.Context, student attendance.Student, _ ...core.DBExecutor) (attendance.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.students[student.ID]
	if !ok {
		return attendance.Student{}, attendance.ErrStudentNotFound
	}
	orig.GivenNames = student.GivenNames
	orig.Surnames = student.Surnames
	orig.DNI = student.DNI
	orig.Phone = student.Phone
	return *orig, repo.db.persist()
}

func (repo *attendanceRepository) DeleteOrphanStudents(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	referenced := make(map[string]bool, len(repo.db.entries))
	for _, e := range repo.db.entries {
		referenced[e.StudentID] = true
	}

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.students[id]; ok && !referenced[id] {
			delete(repo.db.students, id)
			deleted++
		}
	}
	if deleted == 0 {
		return 0, nil
	}
	return deleted, repo.db.persist()
}

// hydrate turns a stored record into an Entry. The lock must be held.
func (repo *attendanceRepository) hydrate(e *entryRecord) attendance.Entry {
	entry := attendance.Entry{
		ID:            e.ID,
		ListID:        e.ListID,
		Present:       e.Present,
		Origin:        e.Origin,
		OriginalOrder: e.OriginalOrder,
		MarkedBy:      e.MarkedBy,
		MarkedAt:      e.MarkedAt,
		CreatedAt:     e.CreatedAt,
	}
	if s, ok := repo.db.students[e.StudentID]; ok {
		entry.Student = *s
	}
	return entry
}

func (repo *attendanceRepository) CreateEntry(_ context.Context, entry attendance.Entry, _ ...core.DBExecutor) (attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.lists[entry.ListID]; !ok {
		return attendance.Entry{}, attendance.ErrListNotFound
	}
	if _, ok := repo.db.students[entry.Student.ID]; !ok {
		return attendance.Entry{}, attendance.ErrStudentNotFound
	}
	for _, e := range repo.db.entries {
		if e.ListID == entry.ListID && e.StudentID == entry.Student.ID {
			return attendance.Entry{}, attendance.ErrAlreadyInList
		}
	}

	rec := &entryRecord{
		ID:            uuid.New().String(),
		ListID:        entry.ListID,
		StudentID:     entry.Student.ID,
		Present:       entry.Present,
		Origin:        entry.Origin,
		OriginalOrder: entry.OriginalOrder,
		MarkedBy:      entry.MarkedBy,
		MarkedAt:      entry.MarkedAt,
		CreatedAt:     entry.CreatedAt,
	}
	repo.db.entries[rec.ID] = rec
	return repo.hydrate(rec), repo.db.persist()
}

func (repo *attendanceRepository) GetEntry(_ context.Context, listID, entryID string, _ ...core.DBExecutor) (attendance.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.entries[entryID]; ok && e.ListID == listID {
		return repo.hydrate(e), nil
	}
	return attendance.Entry{}, attendance.ErrEntryNotFound
}

func (repo *attendanceRepository) QueryEntries(_ context.Context, listID string, _ ...core.DBExecutor) ([]attendance.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]attendance.Entry, 0)
	for _, e := range repo.db.entries {
		if e.ListID == listID {
			entries = append(entries, repo.hydrate(e))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	attendance.SortOriginal(entries)
	return entries, nil
}

func (repo *attendanceRepository) UpdateEntryAttendance(_ context.Context, entry attendance.Entry, _ ...core.DBExecutor) (attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	e, ok := repo.db.entries[entry.ID]
	if !ok || e.ListID != entry.ListID {
		return attendance.Entry{}, attendance.ErrEntryNotFound
	}
	e.Present = entry.Present
	e.MarkedBy = entry.MarkedBy
	e.MarkedAt = entry.MarkedAt
	return repo.hydrate(e), repo.db.persist()
}

func (repo *attendanceRepository) DeleteEntry(_ context.Context, listID, entryID string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if e, ok := repo.db.entries[entryID]; !ok || e.ListID != listID {
		return attendance.ErrEntryNotFound
	}
	delete(repo.db.entries, entryID)
	return repo.db.persist()
}

func (repo *attendanceRepository) MaxOriginalOrder(_ context.Context, listID string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var maxOrder int
	for _, e := range repo.db.entries {
		if e.ListID == listID && e.OriginalOrder > maxOrder {
			maxOrder = e.OriginalOrder
		}
	}
	return maxOrder, nil
}
