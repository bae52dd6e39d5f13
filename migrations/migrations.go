// Package migrations embeds the PostgreSQL schema migrations so the server
// and the migrate CLI ship without a separate migrations directory.
package migrations

import "embed"

// FS holds the versioned *.up.sql and *.down.sql files
//
//go:embed *.sql
var FS embed.FS
