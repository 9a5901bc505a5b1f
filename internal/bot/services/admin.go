package services

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// promotedFreeUses is the extra free pack allowance an /admin promotion
// grants alongside the paid and admin flags.
const promotedFreeUses = 20

type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, repomanager repomanager.RepositoryManager, config *config.Config,
	logger logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		logger:      logger.With("module", "admin"),
	}
}

// Promote grants a user the paid tier, the admin flag and a batch of free
// pack uses. The target row is created if the user never talked to the bot.
func (s *AdminService) Promote(ctx context.Context, targetID int64) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.Get(ctx, targetID)
	if errors.Is(err, common.ErrorNotFound) {
		user, err = repo.Create(ctx, targetID)
	}
	if err != nil {
		return nil, err
	}

	if err := repo.SetPaid(ctx, targetID, true); err != nil {
		return nil, err
	}
	if err := repo.SetAdmin(ctx, targetID, true); err != nil {
		return nil, err
	}
	if err := repo.SetFreePackUses(ctx, targetID, promotedFreeUses); err != nil {
		return nil, err
	}

	user.IsPaid = true
	user.IsAdmin = true
	user.FreePackUses = promotedFreeUses

	s.logger.Info(ctx, "user promoted", "user_id", targetID)
	return user, nil
}

// Broadcast calls send once per known user. Per-user failures are counted
// and logged, never propagated: one blocked chat must not stop the fan-out.
func (s *AdminService) Broadcast(ctx context.Context, send func(ctx context.Context, userID int64) error) (sent, failed int, err error) {
	ids, err := s.repomanager.Users(s.db).ListIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	for i, id := range ids {
		if i > 0 && s.config.BroadcastPause.Duration > 0 {
			select {
			case <-ctx.Done():
				return sent, failed, ctx.Err()
			case <-time.After(s.config.BroadcastPause.Duration):
			}
		}
		if err := send(ctx, id); err != nil {
			failed++
			s.logger.Warn(ctx, "broadcast delivery failed", "user_id", id, "error", err)
			continue
		}
		sent++
	}

	s.logger.Info(ctx, "broadcast finished", "sent", sent, "failed", failed)
	return sent, failed, nil
}

// ItemsForSale reads the owner_items_for_sale toggle; a missing row counts
// as enabled.
func (s *AdminService) ItemsForSale(ctx context.Context) (bool, error) {
	value, err := s.repomanager.Settings(s.db).Get(ctx, models.SettingOwnerItemsForSale)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return true, nil
		}
		return false, err
	}

	on, err := strconv.ParseBool(value)
	if err != nil {
		return true, nil
	}
	return on, nil
}

func (s *AdminService) SetItemsForSale(ctx context.Context, on bool) error {
	return s.repomanager.Settings(s.db).Set(ctx, models.SettingOwnerItemsForSale, strconv.FormatBool(on))
}
