// Package migrations holds the SQL migrations run by goose.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
