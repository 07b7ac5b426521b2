package inmemdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
)

type (
	// DB keeps everything in memory. With a path, every write is persisted to a JSON snapshot
	// that is loaded back on Open.
	DB struct {
		mutex   sync.RWMutex
		txMutex sync.Mutex // one transaction at a time
		inTx    bool       // snapshot writes are deferred to the end of the transaction
		path    string

		lists    map[string]*attendance.List
		students map[string]*attendance.Student
		entries  map[string]*entryRecord
	}

	// entryRecord is an attendance.Entry pointing to its student by ID.
	entryRecord struct {
		ID            string            `json:"id"`
		ListID        string            `json:"list_id"`
		StudentID     string            `json:"student_id"`
		Present       bool              `json:"present"`
		Origin        attendance.Origin `json:"origin"`
		OriginalOrder int               `json:"original_order"`
		MarkedBy      string            `json:"marked_by,omitempty"`
		MarkedAt      *time.Time        `json:"marked_at,omitempty"`
		CreatedAt     time.Time         `json:"created_at"`
	}

	snapshot struct {
		Lists    []*attendance.List    `json:"lists"`
		Students []*attendance.Student `json:"students"`
		Entries  []*entryRecord        `json:"entries"`
	}
)

// Open returns an empty DB, or the one saved at path.
func Open(path string) (*DB, error) {
	db := &DB{
		path:     path,
		lists:    make(map[string]*attendance.List),
		students: make(map[string]*attendance.Student),
		entries:  make(map[string]*entryRecord),
	}
	if path == "" {
		return db, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, errors.Wrap(err, "reading snapshot")
	}
	var snap snapshot
	if err = json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "decoding snapshot")
	}
	db.restore(snap)
	return db, nil
}

// Atomically runs fn as a transaction: the writes fn makes are persisted together at the end,
// or undone when fn fails. Writes made by others while fn runs are undone with it.
func (db *DB) Atomically(fn func() error) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	db.mutex.Lock()
	saved := db.copyData()
	db.inTx = true
	db.mutex.Unlock()

	err := fn()

	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.inTx = false
	if err == nil {
		err = db.persist()
	}
	if err != nil {
		db.restore(saved)
	}
	return err
}

// copyData returns a deep copy of the data. The lock must be held.
func (db *DB) copyData() snapshot {
	snap := snapshot{
		Lists:    make([]*attendance.List, 0, len(db.lists)),
		Students: make([]*attendance.Student, 0, len(db.students)),
		Entries:  make([]*entryRecord, 0, len(db.entries)),
	}
	for _, l := range db.lists {
		l := *l
		snap.Lists = append(snap.Lists, &l)
	}
	for _, s := range db.students {
		s := *s
		snap.Students = append(snap.Students, &s)
	}
	for _, e := range db.entries {
		e := *e
		snap.Entries = append(snap.Entries, &e)
	}
	return snap
}

// restore replaces the data with snap. The write lock must be held.
func (db *DB) restore(snap snapshot) {
	db.lists = make(map[string]*attendance.List, len(snap.Lists))
	db.students = make(map[string]*attendance.Student, len(snap.Students))
	db.entries = make(map[string]*entryRecord, len(snap.Entries))
	for _, l := range snap.Lists {
		db.lists[l.ID] = l
	}
	for _, s := range snap.Students {
		db.students[s.ID] = s
	}
	for _, e := range snap.Entries {
		db.entries[e.ID] = e
	}
}

// persist writes the snapshot. The write lock must be held.
// A failed write leaves memory ahead of the disk, so it is reported as a shutdown error.
func (db *DB) persist() error {
	if db.path == "" || db.inTx {
		return nil
	}
	if err := db.write(); err != nil {
		return core.NewShutdownError(fmt.Sprintf("persisting snapshot %s: %v", db.path, err))
	}
	return nil
}

func (db *DB) write() error {
	data, err := json.Marshal(db.copyData())
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}
	if err = os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
		return errors.Wrap(err, "creating snapshot dir")
	}
	tmp := db.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing snapshot")
	}
	return errors.Wrap(os.Rename(tmp, db.path), "replacing snapshot")
}

func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return db.persist()
}
