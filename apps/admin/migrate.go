package main

import (
	"github.com/pressly/goose/v3"

	"github.com/trezcool/asistencia/assets"
	"github.com/trezcool/asistencia/storage/database"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errNoSQLDB
	}
	if err := database.SetupMigrations(); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, assets.MigrationsDir, arguments...)
}
