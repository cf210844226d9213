// Package sqlstore implements the user and file record stores on a SQL database.
// Queries are written with '?' placeholders and rebound for the active driver,
// so the same repositories serve SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

//go:embed migrations/*.sql
var migrations embed.FS

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent uploads
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dialect, err := gooseDialect(db.DriverName())
	if err != nil {
		return err
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// gooseLogger routes migration output through slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "component", "goose")
}

// Fatalf panics rather than exiting the process.
func (gooseLogger) Fatalf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	slog.Error(msg, "component", "goose")
	panic("goose: " + msg)
}
