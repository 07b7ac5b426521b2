package main

import (
	"context"
	"log"
	"os"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	emailsvc "github.com/trezcool/asistencia/services/email"
	"github.com/trezcool/asistencia/services/export"
	logsvc "github.com/trezcool/asistencia/services/logger"
	"github.com/trezcool/asistencia/services/spreadsheet"
	"github.com/trezcool/asistencia/storage/database"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	logger = logsvc.NewRollbarLogger(log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	ctx := context.Background()
	if !conf.Database.InMemory() {
		errAndDie(database.CreateIfNotExist(ctx, conf))
	}
	store, err := database.OpenStore(ctx, conf)
	errAndDie(err)

	svc := attendance.NewService(
		store.DB(),
		store.Attendance,
		spreadsheet.NewReader(conf.Upload.Limit()),
		export.XLSX{},
		emailsvc.NewService(conf, logger),
		conf,
	)

	// start CLI
	validate, _ := core.NewValidator()
	cli := commandLine{
		db:       store.SQL,
		svc:      svc,
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := store.Close(); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
