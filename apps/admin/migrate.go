package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/toure-cloud/institutdeveloppement/storage/database"
)

var (
	// mockable
	runMigrationsFunc   = database.RunMigrations
	createMigrationFunc = goose.Create
)

func (cli *commandLine) migrate(args []string) error {
	command, arguments := args[0], args[1:]

	// embedded migrations are read-only: new files go to the source tree
	if command == "create" {
		if len(arguments) == 0 {
			return errors.New("create must be of form: migrate create NAME [go|sql]")
		}
		kind := "sql"
		if len(arguments) > 1 {
			kind = arguments[1]
		}
		return createMigrationFunc(nil, cli.migrationsDir, arguments[0], kind)
	}
	return runMigrationsFunc(context.Background(), cli.db, command, arguments...)
}
