package users

import (
	"context"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, id int64) (*models.User, error)
	SetPaid(ctx context.Context, id int64, paid bool) error
	SetAdmin(ctx context.Context, id int64, admin bool) error
	SetFreePackUses(ctx context.Context, id int64, uses int) error
	SetAdaptivePackName(ctx context.Context, id int64, name string) error
	ListIDs(ctx context.Context) ([]int64, error)
}
