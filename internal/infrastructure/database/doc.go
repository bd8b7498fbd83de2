// Package database provides the SQLite connection used for persisted device
// state, state history and the command log.
//
// Schema changes are shipped as embedded migration files named
// YYYYMMDD_HHMMSS_description.up.sql (with an optional .down.sql) and applied
// in version order by Migrate. Each migration runs in its own transaction.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
