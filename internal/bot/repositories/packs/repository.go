package packs

import (
	"context"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

type Repository interface {
	Create(ctx context.Context, pack *models.Pack) (*models.Pack, error)
	// CreateIgnoreConflict inserts a pack unless its slug already exists;
	// used by backup import.
	CreateIgnoreConflict(ctx context.Context, pack *models.Pack) error
	GetByID(ctx context.Context, id int64) (*models.Pack, error)
	GetByName(ctx context.Context, name string) (*models.Pack, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Pack, error)
	ListByUserAndKind(ctx context.Context, userID int64, kind models.PackKind) ([]*models.Pack, error)
}
