package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"sigma-quiz-service/internal/infra/sqlstore"
)

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return sqlstore.CreateSchema(ctx, db)
		},
		func(ctx context.Context, db *bun.DB) error {
			return sqlstore.DropSchema(ctx, db)
		},
	)
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, db *bun.DB) error {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	_, err := migrator.Migrate(ctx)
	return err
}
