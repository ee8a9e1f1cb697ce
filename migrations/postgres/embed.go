// Package migrations embeds SQL migration files for PostgreSQL.
package migrations

import "embed"

// FS contains the schema migrations, applied with golang-migrate.
//
//go:embed *.sql
var FS embed.FS
