// Package migrations embeds the SQL schema applied by db.Migrate.
package migrations

import "embed"

// FS holds the *.up.sql and *.down.sql files in this directory.
//
//go:embed *.sql
var FS embed.FS
