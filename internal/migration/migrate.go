package migration

import (
	"database/sql"
	"embed"
	"strings"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// GooseAdapter routes goose output through zerolog.
type GooseAdapter struct {
	logger zerolog.Logger
}

func NewGooseAdapter(logger zerolog.Logger) *GooseAdapter {
	return &GooseAdapter{logger: logger.With().Str("component", "migrations").Logger()}
}

func (g *GooseAdapter) Printf(format string, v ...interface{}) {
	g.logger.Info().Msgf(strings.TrimSuffix(format, "\n"), v...)
}

func (g *GooseAdapter) Fatalf(format string, v ...interface{}) {
	g.logger.Fatal().Msgf(strings.TrimSuffix(format, "\n"), v...)
}

// RunMigrations applies the embedded migrations inside the tenant schema.
func RunMigrations(db *sql.DB, logger zerolog.Logger) error {
	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS tenant"); err != nil {
		return errors.Wrap(err, "create schema tenant")
	}

	goose.SetLogger(NewGooseAdapter(logger))
	goose.SetBaseFS(embeddedMigrations)
	goose.SetTableName("tenant.goose_db_version")
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	logger.Info().Msg("Migrations completed successfully")
	return nil
}
