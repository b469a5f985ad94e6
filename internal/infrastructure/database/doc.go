// Package database provides SQLite connectivity for the flashlight service.
//
// The service keeps a process-lifetime history of state changes. By default
// the database lives in memory (Path ":memory:") and disappears with the
// process; a file path can be configured for debugging, in which case the
// history table is still cleared at startup.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded *.up.sql files registered by the migrations
// package. They are forward-only.
package database
