package migrations

import "embed"

// FS embeds the SQL migrations for the SQLite slot backend.
//
//go:embed *.sql
var FS embed.FS
