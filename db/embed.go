// Package db provides the embedded goose migrations.
package db

import "embed"

// Migrations holds the goose SQL migrations, rooted at "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations passed to goose.
const MigrationsDir = "migrations"
