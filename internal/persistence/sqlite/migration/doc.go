// Package migration applies versioned SQL schema changes to SQLite databases.
//
// Migration files are read from an fs.FS (normally an embed.FS compiled into
// the binary) and follow the naming convention {version}_{description}.sql,
// e.g. "001_initial_schema.sql". Each file runs inside its own transaction
// and is recorded in the schema_migrations table once it succeeds, so a
// restarted process only applies what is still pending.
//
// Statements are split on semicolons outside string literals, comments and
// CREATE TRIGGER ... BEGIN ... END bodies.
//
// Example usage:
//
//	manager := NewMigrationManager(NewFileScanner(), NewSQLiteExecutor(db), migrations, "migrations", logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
