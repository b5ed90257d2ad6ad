// Package migrations embeds the SQL schema applied by goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

// Dir is the migrations directory inside FS
const Dir = "."

// Setup points goose at the embedded migrations for PostgreSQL
func Setup() error {
	goose.SetBaseFS(FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

// Up applies all pending migrations
func Up(db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	if err := goose.Up(db, Dir); err != nil {
		return fmt.Errorf("failed to run up migrations: %w", err)
	}
	return nil
}
