// Package repomanager wires repository constructors to a database handle so
// services can obtain repositories bound to either *sql.DB or a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/items"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/packs"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/settings"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/users"
	"github.com/dmitrijs2005/packsmith/internal/dbx"
)

type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Packs(db dbx.DBTX) packs.Repository
	Items(db dbx.DBTX) items.Repository
	Settings(db dbx.DBTX) settings.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
