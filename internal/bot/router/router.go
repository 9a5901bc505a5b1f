// Package router dispatches inbound events to the conversation flows and
// services. One failing event is logged and answered with a generic message;
// it never takes the update loop down.
package router

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/conversation"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/quota"
	"github.com/dmitrijs2005/packsmith/internal/bot/render"
	"github.com/dmitrijs2005/packsmith/internal/bot/services"
	"github.com/dmitrijs2005/packsmith/internal/bot/telegram"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// Responder is the outbound half of the transport; internal/bot/telegram
// implements it, tests substitute a recorder.
type Responder interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]models.Button) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]models.Button) error
	AnswerCallback(ctx context.Context, callbackID string) error
	AnswerPreCheckout(ctx context.Context, preCheckoutID string, ok bool, errorMessage string) error
	SendInvoice(ctx context.Context, chatID int64, title, description, payload string, amount int) error
}

// FileFetcher downloads remote files, for photo conversion and backup
// import.
type FileFetcher interface {
	GetFileData(ctx context.Context, fileID string) ([]byte, error)
}

type Router struct {
	config *config.Config
	logger logging.Logger
	engine *conversation.Engine
	policy *quota.Policy

	users    *services.UserService
	packs    *services.PackService
	payments *services.PaymentService
	admin    *services.AdminService
	backup   *services.BackupService

	renderer *render.Renderer
	files    FileFetcher
	resp     Responder

	// pendingItems stashes the last free-form item per user for the
	// "add to existing pack" picker; callback tokens cannot carry file ids.
	mu           sync.Mutex
	pendingItems map[int64]models.Content
}

func NewRouter(cfg *config.Config, logger logging.Logger, engine *conversation.Engine,
	policy *quota.Policy, users *services.UserService, packs *services.PackService,
	payments *services.PaymentService, admin *services.AdminService, backup *services.BackupService,
	renderer *render.Renderer, files FileFetcher, resp Responder) *Router {
	return &Router{
		config:       cfg,
		logger:       logger.With("module", "router"),
		engine:       engine,
		policy:       policy,
		users:        users,
		packs:        packs,
		payments:     payments,
		admin:        admin,
		backup:       backup,
		renderer:     renderer,
		files:        files,
		resp:         resp,
		pendingItems: make(map[int64]models.Content),
	}
}

// HandleEvent implements telegram.Handler.
func (r *Router) HandleEvent(ctx context.Context, ev *models.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error(ctx, "panic while handling event", "user_id", ev.UserID, "panic", p)
		}
	}()

	if r.config.OnlyPrivateChats && !ev.ChatPrivate {
		return
	}

	var err error
	switch ev.Kind {
	case models.EventCommand:
		err = r.handleCommand(ctx, ev)
	case models.EventMessage:
		err = r.handleMessage(ctx, ev)
	case models.EventCallback:
		err = r.handleCallback(ctx, ev)
	case models.EventPreCheckout:
		err = r.handlePreCheckout(ctx, ev)
	case models.EventPaymentDone:
		err = r.handlePaymentDone(ctx, ev)
	}

	if err != nil {
		r.logger.Error(ctx, "event failed", "user_id", ev.UserID, "kind", ev.Kind, "error", err)
		r.reply(ctx, ev, userMessage(err))
	}
}

// userMessage maps the error taxonomy to something a user can act on.
func userMessage(err error) string {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return strings.TrimPrefix(err.Error(), common.ErrorValidation.Error()+": ")
	case errors.Is(err, common.ErrorQuotaExceeded):
		return "Quota reached: " + strings.TrimPrefix(err.Error(), common.ErrorQuotaExceeded.Error()+": ")
	case errors.Is(err, common.ErrorRemote):
		return "Telegram rejected the operation, please try again later."
	case errors.Is(err, common.ErrorNotFound):
		return "Not found."
	}
	return "Something went wrong, please try again."
}

func (r *Router) reply(ctx context.Context, ev *models.Event, text string) {
	if err := r.resp.SendText(ctx, ev.ChatID, text); err != nil {
		r.logger.Warn(ctx, "reply failed", "chat_id", ev.ChatID, "error", err)
	}
}

func (r *Router) handleCommand(ctx context.Context, ev *models.Event) error {
	user, err := r.users.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		return err
	}

	switch ev.Command {
	case "start", "help":
		r.reply(ctx, ev, helpText)
		return nil
	case "create":
		return r.cmdCreate(ctx, ev, user)
	case "acr":
		return r.cmdAcr(ctx, ev)
	case "apack":
		return r.cmdAPack(ctx, ev)
	case "duplicate":
		return r.cmdDuplicate(ctx, ev)
	case "rem":
		return r.cmdRem(ctx, ev)
	case "delete":
		return r.cmdDelete(ctx, ev)
	case "bpack":
		return r.cmdBPack(ctx, ev)
	case "mypack":
		return r.cmdMyPack(ctx, ev)
	case "admin":
		return r.cmdAdmin(ctx, ev)
	case "broadcast":
		return r.cmdBroadcast(ctx, ev)
	case "set":
		return r.cmdSet(ctx, ev)
	case "export":
		return r.cmdExport(ctx, ev)
	case "import":
		r.engine.BeginImport(ev.UserID)
		r.reply(ctx, ev, "Send the backup JSON file as a document.")
		return nil
	case "cancel":
		n := r.engine.CancelAll(ev.UserID)
		r.clearPending(ev.UserID)
		if n == 0 {
			r.reply(ctx, ev, "Nothing to cancel.")
		} else {
			r.reply(ctx, ev, "Cancelled.")
		}
		return nil
	}

	r.reply(ctx, ev, "Unknown command, see /help.")
	return nil
}

const helpText = `PackSmith builds custom emoji and sticker packs for you.

/create emoji|sticker - start a new pack
/acr - build your adaptive emoji pack from text, photos or emoji
/mypack - list your packs
/rem - remove an item from a pack
/delete - delete an item from a pack
/duplicate <link> - copy an existing pack (paid)
/bpack emoji|sticker - unlock big paid packs (paid)
/apack - adaptive pack upgrade (paid)
/export - export your packs as JSON
/import - restore packs from an exported JSON
/cancel - abort the current dialog`

func (r *Router) cmdCreate(ctx context.Context, ev *models.Event, user *models.User) error {
	if len(ev.Args) == 0 {
		r.reply(ctx, ev, "Usage: /create emoji or /create sticker")
		return nil
	}
	kind, ok := models.ParsePackKind(ev.Args[0])
	if !ok {
		r.reply(ctx, ev, "Usage: /create emoji or /create sticker")
		return nil
	}

	// free-tier cap is checked up front so the user is turned away before
	// any dialog starts
	if !user.IsPaid {
		existing, err := r.packs.ListPacksByKind(ctx, ev.UserID, kind)
		if err != nil {
			return err
		}
		if !r.policy.CanCreatePack(false, len(existing)) && user.FreePackUses <= 0 {
			r.reply(ctx, ev, fmt.Sprintf(
				"The free tier allows %d %s pack. Unlock bigger packs with /bpack %s.",
				r.policy.PackCountCap(false), kind, kind))
			return nil
		}
	}

	r.engine.BeginCreate(ev.UserID, conversation.CreateState{
		Step:     conversation.CreateAwaitingName,
		Kind:     kind,
		PaidPack: user.IsPaid,
	})

	min, max := r.policy.NameLengthRange(user.IsPaid)
	r.reply(ctx, ev, fmt.Sprintf("Send a name for your %s pack (%d to %d characters).", kind, min, max))
	return nil
}

// cmdAcr and cmdAPack are owner-only until the adaptive unlock is wired to
// the payment ledger; non-owners are ignored like non-admins on /admin.
func (r *Router) cmdAcr(ctx context.Context, ev *models.Event) error {
	if ev.UserID != r.config.OwnerID {
		return nil
	}
	r.engine.BeginAdaptive(ev.UserID, conversation.AdaptiveState{
		Step: conversation.AdaptiveAwaitingInput,
	})
	r.reply(ctx, ev, "Send text, a photo or a custom emoji to add to your adaptive pack.")
	return nil
}

func (r *Router) cmdAPack(ctx context.Context, ev *models.Event) error {
	if ev.UserID != r.config.OwnerID {
		return nil
	}
	if ok, err := r.paidOpsAvailable(ctx, ev); err != nil || !ok {
		return err
	}
	return r.resp.SendInvoice(ctx, ev.ChatID, "Adaptive pack upgrade",
		"Unlock the adaptive pack upgrade.",
		r.payments.APackPayload(ev.UserID), r.config.PriceAPack)
}

func (r *Router) cmdBPack(ctx context.Context, ev *models.Event) error {
	if len(ev.Args) == 0 {
		r.reply(ctx, ev, "Usage: /bpack emoji or /bpack sticker")
		return nil
	}
	kind, ok := models.ParsePackKind(ev.Args[0])
	if !ok {
		r.reply(ctx, ev, "Usage: /bpack emoji or /bpack sticker")
		return nil
	}
	if ok, err := r.paidOpsAvailable(ctx, ev); err != nil || !ok {
		return err
	}
	return r.resp.SendInvoice(ctx, ev.ChatID, fmt.Sprintf("Big %s pack", kind),
		fmt.Sprintf("Unlock paid %s packs with up to %d items.", kind, r.config.PaidMaxItems),
		r.payments.BPackPayload(ev.UserID, kind), r.payments.BPackPrice(kind))
}

func (r *Router) cmdDuplicate(ctx context.Context, ev *models.Event) error {
	if len(ev.Args) == 0 || telegram.ParsePackLink(ev.Args[0]) == "" {
		r.reply(ctx, ev, "Usage: /duplicate <t.me pack link>")
		return nil
	}
	if ok, err := r.paidOpsAvailable(ctx, ev); err != nil || !ok {
		return err
	}
	return r.resp.SendInvoice(ctx, ev.ChatID, "Duplicate pack",
		"Copy the pack into a new one you own.",
		r.payments.DuplicatePayload(ev.UserID, ev.Args[0]), r.config.PriceDuplicate)
}

// paidOpsAvailable checks the owner's sale toggle before issuing invoices.
func (r *Router) paidOpsAvailable(ctx context.Context, ev *models.Event) (bool, error) {
	on, err := r.admin.ItemsForSale(ctx)
	if err != nil {
		return false, err
	}
	if !on {
		r.reply(ctx, ev, "Paid features are temporarily unavailable.")
		return false, nil
	}
	return true, nil
}

func (r *Router) cmdRem(ctx context.Context, ev *models.Event) error {
	packs, err := r.packs.ListPacks(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		r.reply(ctx, ev, "You have no packs yet.")
		return nil
	}

	r.engine.BeginRemove(ev.UserID, conversation.RemoveState{
		Step: conversation.RemoveAwaitingPack,
	})

	var rows [][]models.Button
	for _, p := range packs {
		rows = append(rows, []models.Button{{
			Text:  fmt.Sprintf("%s (%s)", p.Title, p.Kind),
			Token: fmt.Sprintf("rempick|%d", p.ID),
		}})
	}
	return r.resp.SendKeyboard(ctx, ev.ChatID, "Which pack do you want to remove an item from?", rows)
}

func (r *Router) cmdDelete(ctx context.Context, ev *models.Event) error {
	var (
		packs []*models.Pack
		err   error
	)
	if len(ev.Args) > 0 {
		kind, ok := models.ParsePackKind(ev.Args[0])
		if !ok {
			r.reply(ctx, ev, "Usage: /delete [emoji|sticker]")
			return nil
		}
		r.engine.BeginDelete(ev.UserID, conversation.DeleteState{Kind: kind})
		packs, err = r.packs.ListPacksByKind(ctx, ev.UserID, kind)
	} else {
		r.engine.BeginDelete(ev.UserID, conversation.DeleteState{})
		packs, err = r.packs.ListPacks(ctx, ev.UserID)
	}
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		r.reply(ctx, ev, "Nothing to delete.")
		return nil
	}

	var rows [][]models.Button
	for _, p := range packs {
		rows = append(rows, []models.Button{{
			Text:  fmt.Sprintf("%s (%s)", p.Title, p.Kind),
			Token: fmt.Sprintf("delpick|%d", p.ID),
		}})
	}
	return r.resp.SendKeyboard(ctx, ev.ChatID, "Which pack do you want to delete an item from?", rows)
}

func (r *Router) cmdMyPack(ctx context.Context, ev *models.Event) error {
	packs, err := r.packs.ListPacks(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		r.reply(ctx, ev, "You have no packs yet. Start with /create.")
		return nil
	}

	var rows [][]models.Button
	for _, p := range packs {
		rows = append(rows, []models.Button{{
			Text:  fmt.Sprintf("%s (%s)", p.Title, p.Kind),
			Token: fmt.Sprintf("mypack|%d", p.ID),
		}})
	}
	return r.resp.SendKeyboard(ctx, ev.ChatID, "Your packs:", rows)
}

func (r *Router) cmdAdmin(ctx context.Context, ev *models.Event) error {
	admin, err := r.users.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !admin {
		return nil
	}
	if len(ev.Args) == 0 {
		r.reply(ctx, ev, "Usage: /admin <user id>")
		return nil
	}
	targetID, err := strconv.ParseInt(ev.Args[0], 10, 64)
	if err != nil || targetID <= 0 {
		r.reply(ctx, ev, "Usage: /admin <user id>")
		return nil
	}

	if _, err := r.admin.Promote(ctx, targetID); err != nil {
		return err
	}
	r.reply(ctx, ev, fmt.Sprintf("User %d promoted.", targetID))
	return nil
}

func (r *Router) cmdBroadcast(ctx context.Context, ev *models.Event) error {
	admin, err := r.users.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !admin {
		return nil
	}
	text := strings.Join(ev.Args, " ")
	if text == "" {
		r.reply(ctx, ev, "Usage: /broadcast <text>")
		return nil
	}

	sent, failed, err := r.admin.Broadcast(ctx, func(ctx context.Context, userID int64) error {
		return r.resp.SendText(ctx, userID, text)
	})
	if err != nil {
		return err
	}
	r.reply(ctx, ev, fmt.Sprintf("Broadcast sent to %d users, %d failed.", sent, failed))
	return nil
}

func (r *Router) cmdSet(ctx context.Context, ev *models.Event) error {
	admin, err := r.users.IsAdmin(ctx, ev.UserID)
	if err != nil {
		return err
	}
	if !admin {
		return nil
	}
	if len(ev.Args) == 0 || (ev.Args[0] != "on" && ev.Args[0] != "off") {
		r.reply(ctx, ev, "Usage: /set on|off")
		return nil
	}

	if err := r.admin.SetItemsForSale(ctx, ev.Args[0] == "on"); err != nil {
		return err
	}
	r.reply(ctx, ev, "Paid features are now "+ev.Args[0]+".")
	return nil
}

func (r *Router) cmdExport(ctx context.Context, ev *models.Event) error {
	path, err := r.backup.Export(ctx, ev.UserID)
	if err != nil {
		return err
	}
	r.reply(ctx, ev, "Backup written to "+path)
	return nil
}

func (r *Router) setPending(userID int64, content models.Content) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingItems[userID] = content
}

func (r *Router) takePending(userID int64) (models.Content, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	content, ok := r.pendingItems[userID]
	delete(r.pendingItems, userID)
	return content, ok
}

func (r *Router) clearPending(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pendingItems, userID)
}
