package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/repositories/repomanager"
	"github.com/dmitrijs2005/packsmith/internal/bot/telegram"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// Invoice payload grammar. The payload is the only state a payment carries:
// it is validated at pre-checkout and parsed again at settlement, so both
// sides must accept exactly the same strings.
//
//	bpack:<uid>:<ts>:<kind>
//	apack:<uid>:<ts>
//	duplicate:<uid>:<ts>:<link>
const (
	payloadBPack     = "bpack"
	payloadAPack     = "apack"
	payloadDuplicate = "duplicate"
)

type PaymentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *config.Config
	packs       *PackService
	users       *UserService
	logger      logging.Logger

	now func() time.Time
}

func NewPaymentService(db *sql.DB, repomanager repomanager.RepositoryManager, config *config.Config,
	packs *PackService, users *UserService, logger logging.Logger) *PaymentService {
	return &PaymentService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		packs:       packs,
		users:       users,
		logger:      logger.With("module", "payments"),
		now:         time.Now,
	}
}

func (s *PaymentService) BPackPayload(userID int64, kind models.PackKind) string {
	return fmt.Sprintf("%s:%d:%d:%s", payloadBPack, userID, s.now().Unix(), kind)
}

func (s *PaymentService) APackPayload(userID int64) string {
	return fmt.Sprintf("%s:%d:%d", payloadAPack, userID, s.now().Unix())
}

func (s *PaymentService) DuplicatePayload(userID int64, link string) string {
	return fmt.Sprintf("%s:%d:%d:%s", payloadDuplicate, userID, s.now().Unix(), link)
}

// BPackPrice returns the Stars amount for a paid pack of the given kind.
func (s *PaymentService) BPackPrice(kind models.PackKind) int {
	if kind == models.KindEmoji {
		return s.config.PriceBPackEmoji
	}
	return s.config.PriceBPackSticker
}

// Validate is the pre-checkout gate: only the three known payload shapes
// pass, everything else is declined before any money moves.
func (s *PaymentService) Validate(payload string) error {
	_, _, _, err := parsePayload(payload)
	return err
}

// parsePayload returns (op, uid, extra). extra is the pack kind for bpack,
// the source link for duplicate, empty for apack. The link may itself
// contain colons, so splitting is bounded at four fields.
func parsePayload(payload string) (string, int64, string, error) {
	parts := strings.SplitN(payload, ":", 4)
	if len(parts) < 3 {
		return "", 0, "", fmt.Errorf("%w: malformed payload", common.ErrorValidation)
	}

	op := parts[0]
	uid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || uid <= 0 {
		return "", 0, "", fmt.Errorf("%w: bad user id in payload", common.ErrorValidation)
	}
	if _, err := strconv.ParseInt(parts[2], 10, 64); err != nil {
		return "", 0, "", fmt.Errorf("%w: bad timestamp in payload", common.ErrorValidation)
	}

	switch op {
	case payloadBPack:
		if len(parts) != 4 {
			return "", 0, "", fmt.Errorf("%w: bpack payload needs a pack kind", common.ErrorValidation)
		}
		if _, ok := models.ParsePackKind(parts[3]); !ok {
			return "", 0, "", fmt.Errorf("%w: unknown pack kind %q", common.ErrorValidation, parts[3])
		}
		return op, uid, parts[3], nil

	case payloadAPack:
		if len(parts) != 3 {
			return "", 0, "", fmt.Errorf("%w: apack payload takes no extra field", common.ErrorValidation)
		}
		return op, uid, "", nil

	case payloadDuplicate:
		if len(parts) != 4 || telegram.ParsePackLink(parts[3]) == "" {
			return "", 0, "", fmt.Errorf("%w: duplicate payload needs a pack link", common.ErrorValidation)
		}
		return op, uid, parts[3], nil
	}

	return "", 0, "", fmt.Errorf("%w: unknown payment operation %q", common.ErrorValidation, op)
}

// Settle applies a successfully paid invoice and returns the user-facing
// confirmation text. Settlement must not fail silently: any error here means
// the user paid for something they did not get, so callers log it loudly.
func (s *PaymentService) Settle(ctx context.Context, payload string) (string, error) {
	op, uid, extra, err := parsePayload(payload)
	if err != nil {
		return "", err
	}

	switch op {
	case payloadBPack:
		if _, err := s.users.GetOrCreate(ctx, uid); err != nil {
			return "", err
		}
		if err := s.repomanager.Users(s.db).SetPaid(ctx, uid, true); err != nil {
			return "", err
		}
		s.logger.Info(ctx, "paid tier activated", "user_id", uid)
		return "Payment received. Paid packs are now unlocked: run /create to make one.", nil

	case payloadAPack:
		// the adaptive upgrade is acknowledged but not persisted; /acr
		// itself stays available to everyone
		s.logger.Info(ctx, "adaptive upgrade paid", "user_id", uid)
		return "Payment received. Send /acr to build your adaptive pack.", nil

	case payloadDuplicate:
		user, err := s.users.GetOrCreate(ctx, uid)
		if err != nil {
			return "", err
		}
		slug := telegram.ParsePackLink(extra)
		pack, copied, err := s.packs.Duplicate(ctx, user, slug)
		if err != nil {
			if pack != nil && copied > 0 {
				return fmt.Sprintf("Copied %d items before the remote side failed; the partial pack is at %s.",
					copied, pack.Link), nil
			}
			return "", err
		}
		s.logger.Info(ctx, "duplication settled", "user_id", uid, "source", slug, "items", copied)
		return fmt.Sprintf("Done! Copied %d items: %s", copied, pack.Link), nil
	}

	return "", fmt.Errorf("%w: unknown payment operation %q", common.ErrorValidation, op)
}
