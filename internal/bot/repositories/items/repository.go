package items

import (
	"context"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id int64) (*models.Item, error)
	GetByPackAndFile(ctx context.Context, packID int64, fileID string) (*models.Item, error)
	CountByPack(ctx context.Context, packID int64) (int, error)
	ExistsByPackAndFile(ctx context.Context, packID int64, fileID string) (bool, error)
	// DeleteByPackAndFile removes the matching rows and reports whether
	// anything was deleted.
	DeleteByPackAndFile(ctx context.Context, packID int64, fileID string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Item, error)
}
