package main

import (
	"context"

	"github.com/trezcool/rollcall/storage/database"
)

// migrate runs a goose command over the embedded migrations. args[0] is the command.
func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	return database.Migrate(ctx, cli.db, args[0], args[1:]...)
}
