package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/common"
)

type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
}

func NewUserService(db *sql.DB, repomanager repomanager.RepositoryManager, config *config.Config) *UserService {
	return &UserService{
		db:          db,
		repomanager: repomanager,
		config:      config,
	}
}

// GetOrCreate returns the ledger user row, creating it on first contact.
func (s *UserService) GetOrCreate(ctx context.Context, id int64) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.Get(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	return repo.Create(ctx, id)
}

func (s *UserService) SetAdaptivePackName(ctx context.Context, id int64, name string) error {
	return s.repomanager.Users(s.db).SetAdaptivePackName(ctx, id, name)
}

// IsAdmin reports whether the user may run owner commands. The configured
// owner id is always an admin regardless of the ledger flag.
func (s *UserService) IsAdmin(ctx context.Context, id int64) (bool, error) {
	if id == s.config.OwnerID && id != 0 {
		return true, nil
	}

	user, err := s.repomanager.Users(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}

	return user.IsAdmin, nil
}
