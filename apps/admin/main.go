package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/rollcall/apps/shared"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/storage/database"
	sqlxrepos "github.com/trezcool/rollcall/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := shared.NewLogger(os.Stderr, conf)
	ctx := context.Background()

	// set up DB
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// set up services; the CLI does not serve metrics
	importSvc, err := shared.NewImportService(conf, sqlxrepos.NewRosterRepository(db), logger, prometheus.NewRegistry())
	if err != nil {
		_ = db.Close()
		logger.Fatal(fmt.Sprintf("setting up import service: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		out:       os.Stdout,
		db:        db.DB,
		importSvc: importSvc,
	}
	err = cli.run(ctx, os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
