// Package testutil holds the helpers shared by tests.
package testutil

import (
	"context"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/services/email"
	"github.com/trezcool/asistencia/services/export"
	"github.com/trezcool/asistencia/services/logger"
	"github.com/trezcool/asistencia/services/spreadsheet"
	"github.com/trezcool/asistencia/storage/database/inmem"
)

// NewLogger returns a logger writing nowhere, with Rollbar disabled.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
}

// Deps are the dependencies of an attendance.Service built for tests.
type Deps struct {
	Conf    *core.Config
	DB      *inmemdb.DB
	Repo    attendance.Repository
	MailSvc core.EmailService
	Service *attendance.Service
}

// NewService builds an attendance.Service over an in-memory database, persisted to snapshot when not empty.
func NewService(t *testing.T, snapshot ...string) Deps {
	t.Helper()

	var path string
	if len(snapshot) > 0 {
		path = snapshot[0]
	}
	db, err := inmemdb.Open(path)
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}

	conf := core.NewTestConfig()
	core.ParseEmailTemplates(NewLogger())
	repo := inmemdb.NewAttendanceRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	emailsvc.ResetSentMessages()

	return Deps{
		Conf:    conf,
		DB:      db,
		Repo:    repo,
		MailSvc: mailSvc,
		Service: attendance.NewService(nil, repo, spreadsheet.NewReader(conf.Upload.Limit()), export.XLSX{}, mailSvc, conf),
	}
}

func CreateList(t *testing.T, svc *attendance.Service, name, date string) attendance.List {
	t.Helper()
	list, err := svc.CreateList(context.Background(), attendance.NewList{Name: name, Date: date})
	if err != nil {
		t.Fatalf("CreateList() failed: %v", err)
	}
	return list
}

func AddStudent(t *testing.T, svc *attendance.Service, listID, givenNames, surnames string) attendance.Entry {
	t.Helper()
	entry, err := svc.AddStudent(context.Background(), listID, attendance.NewStudent{GivenNames: givenNames, Surnames: surnames})
	if err != nil {
		t.Fatalf("AddStudent() failed: %v", err)
	}
	return entry
}

// CSV joins lines into the content of a .csv file.
func CSV(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

// ImportCSV imports lines as a .csv roster into the list.
func ImportCSV(t *testing.T, svc *attendance.Service, listID string, lines ...string) attendance.ImportResult {
	t.Helper()
	data := CSV(lines...)
	res, err := svc.ImportFile(context.Background(), listID, "lista.csv", int64(len(data)), strings.NewReader(string(data)))
	if err != nil {
		t.Fatalf("ImportFile() failed: %v", err)
	}
	return res
}
