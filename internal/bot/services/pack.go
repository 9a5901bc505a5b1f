// Package services implements the bot's business operations over the
// repository layer and the remote pack gateway. The ordering discipline is
// remote-first, ledger-second: the ledger only records what the remote side
// confirmed, and a ledger write failure after a remote success is logged
// and swallowed rather than surfaced to the user.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/gateway"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/quota"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/bot/telegram"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// duplicateYieldEvery bounds how many consecutive remote appends a single
// duplication makes before yielding the scheduler.
const duplicateYieldEvery = 10

type PackService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	gateway     gateway.Gateway
	policy      *quota.Policy
	logger      logging.Logger

	mu        sync.Mutex
	slugLocks map[string]*sync.Mutex
}

func NewPackService(db *sql.DB, repomanager repomanager.RepositoryManager, config *config.Config,
	gw gateway.Gateway, policy *quota.Policy, logger logging.Logger) *PackService {
	return &PackService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		gateway:     gw,
		policy:      policy,
		logger:      logger.With("module", "packs"),
		slugLocks:   make(map[string]*sync.Mutex),
	}
}

// slugLock returns the mutex serializing mutations of one remote pack.
func (s *PackService) slugLock(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.slugLocks[slug]
	if !ok {
		lock = &sync.Mutex{}
		s.slugLocks[slug] = lock
	}
	return lock
}

// Slug builds the remote slug for a pack name. Free-tier slugs carry the
// _by_<botusername> suffix Telegram requires of bot-created sets.
func (s *PackService) Slug(ctx context.Context, name string, paidPack bool) (string, error) {
	slug := telegram.NormalizeSlug(name)
	if slug == "" {
		return "", fmt.Errorf("%w: name has no usable characters", common.ErrorValidation)
	}
	if !paidPack {
		username, err := s.gateway.BotUsername(ctx)
		if err != nil {
			return "", err
		}
		slug = slug + "_by_" + username
	}
	return slug, nil
}

// CreatePack validates locally, creates the remote pack with its first item
// and then records it in the ledger. Remote failure aborts with no ledger
// writes; ledger failure after remote success is logged and swallowed, so
// the returned pack may carry a zero ID.
func (s *PackService) CreatePack(ctx context.Context, user *models.User, name, title string,
	kind models.PackKind, paidPack bool, first gateway.Item) (*models.Pack, error) {

	if !s.policy.ValidName(paidPack, name) {
		min, max := s.policy.NameLengthRange(paidPack)
		return nil, fmt.Errorf("%w: pack name must be %d to %d characters", common.ErrorValidation, min, max)
	}

	packsRepo := s.repomanager.Packs(s.db)
	existing, err := packsRepo.ListByUserAndKind(ctx, user.ID, kind)
	if err != nil {
		return nil, err
	}

	usesExtraSlot := false
	if !paidPack && !s.policy.CanCreatePack(false, len(existing)) {
		if user.FreePackUses <= 0 {
			return nil, fmt.Errorf("%w: free tier allows %d %s pack", common.ErrorQuotaExceeded,
				s.policy.PackCountCap(false), kind)
		}
		usesExtraSlot = true
	}

	slug, err := s.Slug(ctx, name, paidPack)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.CreatePack(ctx, user.ID, slug, title, first, kind); err != nil {
		return nil, err
	}

	link := telegram.StickerPackLink(slug)
	if kind == models.KindEmoji {
		link = telegram.EmojiPackLink(slug)
	}

	pack := &models.Pack{
		UserID:     user.ID,
		Name:       slug,
		Title:      title,
		Kind:       kind,
		IsPaidPack: paidPack,
		Link:       link,
	}

	if created, err := packsRepo.Create(ctx, pack); err != nil {
		s.logger.Warn(ctx, "ledger write failed after remote create",
			"slug", slug, "error", fmt.Errorf("%w: %v", common.ErrorLedgerWrite, err))
	} else {
		pack = created
		s.recordItem(ctx, pack, first)
	}

	if usesExtraSlot {
		if err := s.repomanager.Users(s.db).SetFreePackUses(ctx, user.ID, user.FreePackUses-1); err != nil {
			s.logger.Warn(ctx, "failed to consume free pack use", "user_id", user.ID, "error", err)
		}
	}

	s.logger.Info(ctx, "pack created", "user_id", user.ID, "slug", slug, "kind", kind)
	return pack, nil
}

// AppendItem adds one item to an existing pack. The quota check runs against
// a live ledger count under the pack's mutex so concurrent appends cannot
// both pass a last-slot check.
func (s *PackService) AppendItem(ctx context.Context, pack *models.Pack, item gateway.Item) error {
	lock := s.slugLock(pack.Name)
	lock.Lock()
	defer lock.Unlock()

	count, err := s.repomanager.Items(s.db).CountByPack(ctx, pack.ID)
	if err != nil {
		return err
	}
	if !s.policy.CanAppend(pack.IsPaidPack, pack.Kind, count) {
		return fmt.Errorf("%w: pack holds %d of %d items", common.ErrorQuotaExceeded,
			count, s.policy.ItemCap(pack.IsPaidPack, pack.Kind))
	}

	if err := s.gateway.AppendItem(ctx, pack.UserID, pack.Name, item); err != nil {
		return err
	}

	s.recordItem(ctx, pack, item)
	return nil
}

// RemoveItem attempts the remote removal and scrubs the ledger row
// regardless of the outcome: a remote failure for an already-absent item is
// indistinguishable from a real one, and the ledger must not keep rows the
// user asked to drop. Returns whether a ledger row existed.
func (s *PackService) RemoveItem(ctx context.Context, pack *models.Pack, fileID string) (bool, error) {
	if err := s.gateway.RemoveItem(ctx, fileID); err != nil {
		s.logger.Warn(ctx, "remote removal failed, scrubbing ledger anyway",
			"slug", pack.Name, "file_id", fileID, "error", err)
	}

	deleted, err := s.repomanager.Items(s.db).DeleteByPackAndFile(ctx, pack.ID, fileID)
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// Duplicate copies a remote pack item by item into a new pack owned by the
// user. Items append in source order; the loop yields the scheduler every
// few appends so one big pack cannot starve the dispatch loop. On failure
// the committed prefix stays, and the count of copied items is returned
// alongside the error.
func (s *PackService) Duplicate(ctx context.Context, user *models.User, sourceSlug string) (*models.Pack, int, error) {
	source, err := s.gateway.FetchPack(ctx, sourceSlug)
	if err != nil {
		return nil, 0, err
	}
	if len(source.Items) == 0 {
		return nil, 0, fmt.Errorf("%w: source pack is empty", common.ErrorValidation)
	}

	base := telegram.NormalizeSlug(source.Name)
	suffix, err := common.MakeRandHexString(4)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	slug := fmt.Sprintf("%s_%s", base, suffix)
	if !user.IsPaid {
		username, err := s.gateway.BotUsername(ctx)
		if err != nil {
			return nil, 0, err
		}
		slug = slug + "_by_" + username
	}

	if err := s.gateway.CreatePack(ctx, user.ID, slug, source.Title, source.Items[0], source.Kind); err != nil {
		return nil, 0, err
	}

	link := telegram.StickerPackLink(slug)
	if source.Kind == models.KindEmoji {
		link = telegram.EmojiPackLink(slug)
	}

	pack := &models.Pack{
		UserID:     user.ID,
		Name:       slug,
		Title:      source.Title,
		Kind:       source.Kind,
		IsPaidPack: user.IsPaid,
		Link:       link,
	}
	if created, err := s.repomanager.Packs(s.db).Create(ctx, pack); err != nil {
		s.logger.Warn(ctx, "ledger write failed after remote create",
			"slug", slug, "error", fmt.Errorf("%w: %v", common.ErrorLedgerWrite, err))
	} else {
		pack = created
		s.recordItem(ctx, pack, source.Items[0])
	}

	copied := 1
	for i, item := range source.Items[1:] {
		if err := s.gateway.AppendItem(ctx, user.ID, slug, item); err != nil {
			s.logger.Warn(ctx, "duplication stopped early",
				"slug", slug, "copied", copied, "total", len(source.Items), "error", err)
			return pack, copied, err
		}
		s.recordItem(ctx, pack, item)
		copied++
		if (i+1)%duplicateYieldEvery == 0 {
			runtime.Gosched()
		}
	}

	s.logger.Info(ctx, "pack duplicated", "user_id", user.ID, "source", sourceSlug, "slug", slug, "items", copied)
	return pack, copied, nil
}

// CreateAdaptivePack creates the user's single adaptive emoji pack with a
// fixed slug derived from the user id, then records the slug on the user
// row. Name validation and the pack-count quota do not apply here.
func (s *PackService) CreateAdaptivePack(ctx context.Context, user *models.User, first gateway.Item) (*models.Pack, error) {
	if user.AdaptivePackName != "" {
		return nil, fmt.Errorf("%w: adaptive pack already exists", common.ErrorValidation)
	}

	slug := fmt.Sprintf("acr_%d", user.ID)
	if !user.IsPaid {
		username, err := s.gateway.BotUsername(ctx)
		if err != nil {
			return nil, err
		}
		slug = fmt.Sprintf("%s_by_%s", slug, username)
	}

	if err := s.gateway.CreatePack(ctx, user.ID, slug, "Adaptive pack", first, models.KindEmoji); err != nil {
		return nil, err
	}

	pack := &models.Pack{
		UserID:     user.ID,
		Name:       slug,
		Title:      "Adaptive pack",
		Kind:       models.KindEmoji,
		IsPaidPack: user.IsPaid,
		Link:       telegram.EmojiPackLink(slug),
	}
	if created, err := s.repomanager.Packs(s.db).Create(ctx, pack); err != nil {
		s.logger.Warn(ctx, "ledger write failed after remote create",
			"slug", slug, "error", fmt.Errorf("%w: %v", common.ErrorLedgerWrite, err))
	} else {
		pack = created
		s.recordItem(ctx, pack, first)
	}

	if err := s.repomanager.Users(s.db).SetAdaptivePackName(ctx, user.ID, slug); err != nil {
		s.logger.Warn(ctx, "failed to record adaptive pack name", "user_id", user.ID, "error", err)
	}

	s.logger.Info(ctx, "adaptive pack created", "user_id", user.ID, "slug", slug)
	return pack, nil
}

// AdaptivePack resolves the user's adaptive pack from the slug stored on the
// user row.
func (s *PackService) AdaptivePack(ctx context.Context, user *models.User) (*models.Pack, error) {
	if user.AdaptivePackName == "" {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Packs(s.db).GetByName(ctx, user.AdaptivePackName)
}

// LiveCount prefers the remote item count and falls back to the ledger when
// the remote side is unreachable.
func (s *PackService) LiveCount(ctx context.Context, pack *models.Pack) (int, error) {
	remote, err := s.gateway.FetchPack(ctx, pack.Name)
	if err == nil {
		return len(remote.Items), nil
	}
	if !errors.Is(err, common.ErrorRemote) {
		return 0, err
	}
	return s.repomanager.Items(s.db).CountByPack(ctx, pack.ID)
}

func (s *PackService) ListPacks(ctx context.Context, userID int64) ([]*models.Pack, error) {
	return s.repomanager.Packs(s.db).ListByUser(ctx, userID)
}

func (s *PackService) ListPacksByKind(ctx context.Context, userID int64, kind models.PackKind) ([]*models.Pack, error) {
	return s.repomanager.Packs(s.db).ListByUserAndKind(ctx, userID, kind)
}

func (s *PackService) GetPack(ctx context.Context, id int64) (*models.Pack, error) {
	return s.repomanager.Packs(s.db).GetByID(ctx, id)
}

func (s *PackService) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	return s.repomanager.Items(s.db).GetByID(ctx, id)
}

// FindItem resolves the ledger row for a file within a pack, if any.
func (s *PackService) FindItem(ctx context.Context, packID int64, fileID string) (*models.Item, error) {
	return s.repomanager.Items(s.db).GetByPackAndFile(ctx, packID, fileID)
}

// recordItem is the best-effort ledger insert after a remote success.
// Rendered uploads have no inbound file id, so a synthetic marker keeps the
// row addressable.
func (s *PackService) recordItem(ctx context.Context, pack *models.Pack, item gateway.Item) {
	if pack.ID == 0 {
		return
	}

	fileID := item.FileID
	if fileID == "" {
		fileID = "render:" + uuid.NewString()
	}
	emoji := ""
	if len(item.Emojis) > 0 {
		emoji = item.Emojis[0]
	}

	err := s.repomanager.Items(s.db).Create(ctx, &models.Item{
		PackID: pack.ID,
		FileID: fileID,
		Emoji:  emoji,
		Kind:   pack.Kind,
	})
	if err != nil {
		s.logger.Warn(ctx, "ledger write failed after remote append",
			"slug", pack.Name, "error", fmt.Errorf("%w: %v", common.ErrorLedgerWrite, err))
	}
}
