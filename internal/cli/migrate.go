package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"sigma-quiz-service/internal/config"
	"sigma-quiz-service/internal/infra/sqlstore"
	"sigma-quiz-service/internal/infra/sqlstore/migrations"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("neither postgres url nor sqlite path configured")
	}
	defer db.Close()
	return migrateDB(ctx, db)
}

// openDB returns nil when no SQL database is configured.
func openDB(cfg config.Config) (*bun.DB, error) {
	switch {
	case cfg.Postgres.URL != "":
		return sqlstore.OpenPostgres(cfg.Postgres.URL), nil
	case cfg.SQLite.Path != "":
		return sqlstore.OpenSQLite(cfg.SQLite.Path)
	}
	return nil, nil
}

func migrateDB(ctx context.Context, db *bun.DB) error {
	if err := migrations.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Printf("migrations applied (%s)", db.Dialect().Name())
	return nil
}
