package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects the Go migrations registered by this package.
var Migrations = migrate.NewMigrations()
