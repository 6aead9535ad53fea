package migrations

import "embed"

// FS contains embedded SQLite migrations. Table names carry the
// {{prefix}} placeholder.
//
//go:embed *.sql
var FS embed.FS
