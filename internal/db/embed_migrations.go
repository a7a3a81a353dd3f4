package db

import "embed"

// Migrations holds the numbered up/down SQL pairs under migrations/. The
// migrate runner applies them in order; cmd/migrate is the CLI entry point.
//
//go:embed migrations/*.sql
var Migrations embed.FS
