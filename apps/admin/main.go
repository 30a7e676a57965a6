package main

import (
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/trezcool/hazira/core"
	logsvc "github.com/trezcool/hazira/services/logger"
	"github.com/trezcool/hazira/storage/database"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	if err := conf.Validate(); err != nil {
		logger.Fatal(err.Error(), err)
	}

	cli := commandLine{
		out: os.Stdout,
		openDB: func() (*sql.DB, string, error) {
			return database.OpenSqlDB(conf)
		},
		openStore: func() (core.TreeStore, error) {
			return database.OpenStore(context.Background(), conf, logger)
		},
	}
	err := cli.run(os.Args)
	if cerr := cli.close(); cerr != nil {
		logger.Error("closing store", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		os.Exit(1)
	}
}
