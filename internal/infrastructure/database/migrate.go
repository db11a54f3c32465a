package database

import (
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

// RunMigrations applies all pending goose migrations from path against
// the master connection.
func RunMigrations(db *dbpg.DB, path string) error {
	if db == nil || db.Master == nil {
		return fmt.Errorf("no master connection for migrations")
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.Up(db.Master, path); err != nil {
		return fmt.Errorf("apply migrations from %s: %w", path, err)
	}

	version, err := goose.GetDBVersion(db.Master)
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("could not read migration version")
		return nil
	}

	zlog.Logger.Info().Int64("version", version).Msg("database migrations applied")
	return nil
}
