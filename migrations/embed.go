// Package migrations embeds the SQL schema migrations.
package migrations

import "embed"

// FS holds every numbered .sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
