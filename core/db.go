package core

import (
	"context"
	"database/sql"
)

type (
	// DBExecutor runs statements. Repositories accept one optionally so that the service can pass a
	// transaction; they fall back to their own pool otherwise.
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// DB is the SQL pool the attendance service opens its transactions on.
	DB interface {
		DBExecutor

		BeginTx(context.Context, *sql.TxOptions) (*sql.Tx, error)
	}

	// DBTransactor is an open transaction.
	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

var (
	_ DB           = (*sql.DB)(nil)
	_ DBTransactor = (*sql.Tx)(nil)
)

// DBOrdering is one ORDER BY term. The zero value sorts descending, newest first.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}
