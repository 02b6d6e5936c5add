// Package database opens the SQLite file behind the assignment cache and
// keeps its schema current.
//
// Migrations are read from an fs.FS (normally the embedded migrations
// package) and applied in version order, one transaction each. Files are
// named YYYYMMDD_HHMMSS_description.up.sql with an optional .down.sql.
//
// The file is restricted to 0600. It holds scope ids, device ids and hub
// host names, never credentials.
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:       cfg.AssignmentCache.Path,
//	    WALMode:    true,
//	    Migrations: migrations.FS,
//	})
package database
