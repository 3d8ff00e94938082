// Package migrations compiles the bridge's SQL migration files into the
// binary, so a deployed bridge needs no SQL files on disk.
//
// main blank-imports this package; the init below registers the embedded
// filesystem with the database package's migration runner.
package migrations

import (
	"embed"

	"github.com/nerrad567/fairland-bridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
