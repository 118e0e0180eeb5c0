package storage

import (
	"context"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"wedding-site/internal/models"
	"wedding-site/internal/storage/migrations"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Open connects to the database and verifies the connection
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if _, err := gooseDialect(driver); err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// One writer at a time; also keeps ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// goose keeps its configuration in package globals
var migrateMu sync.Mutex

// Migrate applies the embedded schema migrations
func Migrate(ctx context.Context, db *sqlx.DB, log zerolog.Logger) error {
	dialect, err := gooseDialect(db.DriverName())
	if err != nil {
		return err
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrate").Logger()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return backfillSearchText(ctx, db)
}

// backfillSearchText fills search_text for rows written before the column
// existed
func backfillSearchText(ctx context.Context, db *sqlx.DB) error {
	var stale []models.Invitation
	if err := db.SelectContext(ctx, &stale, `SELECT id, party_name, guest_names FROM invitations WHERE search_text = ''`); err != nil {
		return fmt.Errorf("failed to find invitations to reindex: %w", err)
	}

	q := db.Rebind(`UPDATE invitations SET search_text = ? WHERE id = ?`)
	for _, inv := range stale {
		if _, err := db.ExecContext(ctx, q, inv.SearchText(), inv.ID); err != nil {
			return fmt.Errorf("failed to reindex invitation %s: %w", inv.ID, err)
		}
	}
	return nil
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return "sqlite3", nil
	case DriverPostgres:
		return "postgres", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatal().Msgf(format, v...)
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Debug().Msgf(format, v...)
}
