// Package sqlite embeds the SQLite schema migrations for the node's local database.
package sqlite

import (
	"embed"
)

//go:embed migrations/*.sql
var migrations embed.FS

// GetMigrationsFS returns the embedded FS rooted above the "migrations" directory.
func GetMigrationsFS() embed.FS {
	return migrations
}
