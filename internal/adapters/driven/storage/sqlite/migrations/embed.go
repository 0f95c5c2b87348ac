// Package migrations carries the SQL schema migrations applied by the
// SQLite store at startup.
package migrations

import "embed"

// FS holds the migration files embedded into the binary.
//
//go:embed *.sql
var FS embed.FS
