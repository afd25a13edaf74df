// Package migrations embeds the SQL schema. Migrations are plain files
// applied in lexical order; there is no down path because the schema is
// append-only in production.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
