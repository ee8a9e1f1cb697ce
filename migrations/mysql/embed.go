// Package mysql embeds SQL migration files for MySQL databases.
package mysql

import "embed"

// FS contains the schema migrations, applied with golang-migrate.
//
//go:embed *.sql
var FS embed.FS
