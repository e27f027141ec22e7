package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/importer"
	"github.com/trezcool/rollcall/core/roster"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	out       io.Writer
	db        *sql.DB
	importSvc *importer.Service
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  import -file PATH|-url URL [-role ROLE] [-day ID] - import a roster, or attendance when -day is set")
	_, _ = fmt.Fprintln(cli.out, "  recount -identity ID - recompute the attendance total of an identity")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importCmd.SetOutput(cli.out)
	importFile := importCmd.String("file", "", "Path of the file to import.")
	importURL := importCmd.String("url", "", "Link of the file to import.")
	importRole := importCmd.String("role", string(roster.RoleCadet), "Role of the imported people: cadet or staff.")
	importDay := importCmd.Int64("day", 0, "Training day ID. Imports attendance instead of a roster.")

	recountCmd := flag.NewFlagSet("recount", flag.ContinueOnError)
	recountCmd.SetOutput(cli.out)
	recountIdentity := recountCmd.Int64("identity", 0, "The identity ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if (*importFile == "") == (*importURL == "") {
			importCmd.Usage()
			return errHelp
		}
		role, ok := roster.ParseRole(*importRole)
		if !ok {
			return errors.Errorf("unknown role %q", *importRole)
		}
		target := importer.Target{Role: role, TrainingDayID: *importDay}
		if *importURL != "" {
			return cli.importURL(ctx, *importURL, target)
		}
		return cli.importFile(ctx, *importFile, target)

	case "recount":
		if err := recountCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *recountIdentity <= 0 {
			recountCmd.Usage()
			return errHelp
		}
		return cli.recount(ctx, *recountIdentity)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) importFile(ctx context.Context, path string, target importer.Target) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading import file")
	}
	res, err := cli.importSvc.ImportFile(ctx, filepath.Base(path), data, target)
	if err != nil {
		return err
	}
	cli.printResult(res)
	return nil
}

func (cli *commandLine) importURL(ctx context.Context, rawURL string, target importer.Target) error {
	res, err := cli.importSvc.ImportURL(ctx, rawURL, target)
	if err != nil {
		return err
	}
	cli.printResult(res)
	return nil
}

func (cli *commandLine) printResult(res importer.Result) {
	_, _ = fmt.Fprintln(cli.out, res.Message)
	for _, msg := range res.Errors {
		_, _ = fmt.Fprintln(cli.out, "  "+msg)
	}
}

func (cli *commandLine) recount(ctx context.Context, identityID int64) error {
	total, err := cli.importSvc.Aggregator().Recount(ctx, identityID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "identity %d: %d training day(s) attended\n", identityID, total)
	return nil
}
