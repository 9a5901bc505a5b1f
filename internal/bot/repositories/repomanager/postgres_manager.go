package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/packsmith/internal/bot/migrations"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/items"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/packs"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/settings"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/users"
	"github.com/dmitrijs2005/packsmith/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct {
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Packs(db dbx.DBTX) packs.Repository {
	return packs.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Items(db dbx.DBTX) items.Repository {
	return items.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Settings(db dbx.DBTX) settings.Repository {
	return settings.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}
