package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/toure-cloud/institutdeveloppement/core"
	logsvc "github.com/toure-cloud/institutdeveloppement/services/logger"
	"github.com/toure-cloud/institutdeveloppement/storage/database"
	sqlxrepos "github.com/toure-cloud/institutdeveloppement/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database: "+err.Error(), err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = database.Ping(ctx, db)
	cancel()
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	// start CLI
	cli := commandLine{
		db:            db,
		usrRepo:       sqlxrepos.NewUserRepository(db),
		migrationsDir: conf.WorkDir + "/fs/migrations",
	}
	err = cli.run(os.Args)
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("\nerror: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
