package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/storage/database/inmem"
	"github.com/trezcool/asistencia/storage/database/sqlx"
)

// Store is the storage selected by Config.Database.Engine.
type Store struct {
	SQL        *sql.DB // nil for the memory engine
	Attendance attendance.Repository

	mem *inmemdb.DB
}

// OpenStore opens the configured storage. The postgres engine is migrated up on open.
func OpenStore(ctx context.Context, conf *core.Config) (*Store, error) {
	if conf.Database.InMemory() {
		mem, err := inmemdb.Open(conf.Database.LocalPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening memory database")
		}
		return &Store{Attendance: inmemdb.NewAttendanceRepository(mem), mem: mem}, nil
	}

	db, err := Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{SQL: db, Attendance: sqlxrepos.NewAttendanceRepository(db)}, nil
}

// DB is what services use for transactions, nil for the memory engine.
func (s *Store) DB() core.DB {
	if s.SQL == nil {
		return nil
	}
	return s.SQL
}

func (s *Store) Close() error {
	if s.mem != nil {
		return s.mem.Close()
	}
	return s.SQL.Close()
}
