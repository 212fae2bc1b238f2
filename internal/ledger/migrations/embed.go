package migrations

import "embed"

// FS contains the embedded SQLite migrations of the session ledger.
//
//go:embed *.sql
var FS embed.FS
