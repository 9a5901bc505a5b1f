package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/packsmith/internal/bot/conversation"
	"github.com/dmitrijs2005/packsmith/internal/bot/gateway"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/render"
	"github.com/dmitrijs2005/packsmith/internal/common"
)

// handleCallback routes a button press by its token prefix. Tokens are
// self-contained; any flow state they touch is re-checked, never assumed.
func (r *Router) handleCallback(ctx context.Context, ev *models.Event) error {
	if err := r.resp.AnswerCallback(ctx, ev.CallbackID); err != nil {
		r.logger.Warn(ctx, "callback answer failed", "error", err)
	}

	op, rest, _ := strings.Cut(ev.Token, "|")
	switch op {
	case "addto":
		return r.cbAddTo(ctx, ev, rest)
	case "rempick":
		return r.cbRemPick(ctx, ev, rest)
	case "delpick":
		return r.cbDelPick(ctx, ev, rest)
	case "remconf":
		return r.cbRemConfirm(ctx, ev, rest)
	case "remno":
		r.engine.Clear(ev.UserID, conversation.FlowRemove)
		return r.edit(ctx, ev, "Nothing was removed.")
	case "acr_font":
		return r.cbAcrFont(ctx, ev, rest)
	case "acr_bg":
		return r.cbAcrBackground(ctx, ev, rest)
	case "mypack":
		return r.cbMyPack(ctx, ev, rest)
	}

	r.logger.Warn(ctx, "unknown callback token", "token", ev.Token)
	return nil
}

func (r *Router) edit(ctx context.Context, ev *models.Event, text string) error {
	if ev.ChatID == 0 {
		// inaccessible origin message: answer in a fresh one
		return r.resp.SendText(ctx, ev.UserID, text)
	}
	return r.resp.EditText(ctx, ev.ChatID, ev.MessageID, text, nil)
}

// ownPack resolves a pack id token and checks the caller owns it.
func (r *Router) ownPack(ctx context.Context, ev *models.Event, token string) (*models.Pack, error) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad pack token", common.ErrorValidation)
	}
	pack, err := r.packs.GetPack(ctx, id)
	if err != nil {
		return nil, err
	}
	if pack.UserID != ev.UserID {
		return nil, common.ErrorUnauthorized
	}
	return pack, nil
}

func (r *Router) cbAddTo(ctx context.Context, ev *models.Event, rest string) error {
	pack, err := r.ownPack(ctx, ev, rest)
	if err != nil {
		return err
	}

	content, ok := r.takePending(ev.UserID)
	if !ok {
		return r.edit(ctx, ev, "That item is gone, send it again.")
	}
	if kind, ok := content.PackKindFor(); !ok || kind != pack.Kind {
		return r.edit(ctx, ev, "That item does not fit this pack.")
	}

	item, err := r.itemFromContent(ctx, content, -1, render.BackgroundNone)
	if err != nil {
		return err
	}
	if err := r.packs.AppendItem(ctx, pack, item); err != nil {
		return err
	}

	return r.edit(ctx, ev, "Added to "+pack.Title+": "+pack.Link)
}

func (r *Router) cbRemPick(ctx context.Context, ev *models.Event, rest string) error {
	pack, err := r.ownPack(ctx, ev, rest)
	if err != nil {
		return err
	}

	r.engine.BeginRemove(ev.UserID, conversation.RemoveState{
		Step:   conversation.RemoveAwaitingItem,
		PackID: pack.ID,
		Slug:   pack.Name,
	})
	return r.edit(ctx, ev, "Send the item you want removed from "+pack.Title+".")
}

// cbDelPick narrows /delete to a single pack; from here on the flow is the
// same item capture and confirmation as /remove.
func (r *Router) cbDelPick(ctx context.Context, ev *models.Event, rest string) error {
	pack, err := r.ownPack(ctx, ev, rest)
	if err != nil {
		return err
	}

	r.engine.Clear(ev.UserID, conversation.FlowDelete)
	r.engine.BeginRemove(ev.UserID, conversation.RemoveState{
		Step:   conversation.RemoveAwaitingItem,
		PackID: pack.ID,
		Slug:   pack.Name,
	})
	return r.edit(ctx, ev, "Send the item you want deleted from "+pack.Title+".")
}

// cbRemConfirm executes a stateless removal confirmation: pack and item ids
// ride in the token, so this works after a restart or with no flow state.
func (r *Router) cbRemConfirm(ctx context.Context, ev *models.Event, rest string) error {
	packToken, itemToken, ok := strings.Cut(rest, "|")
	if !ok {
		return fmt.Errorf("%w: bad confirmation token", common.ErrorValidation)
	}
	pack, err := r.ownPack(ctx, ev, packToken)
	if err != nil {
		return err
	}
	itemID, err := strconv.ParseInt(itemToken, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad confirmation token", common.ErrorValidation)
	}

	item, err := r.packs.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.PackID != pack.ID {
		return common.ErrorUnauthorized
	}

	if _, err := r.packs.RemoveItem(ctx, pack, item.FileID); err != nil {
		return err
	}

	r.engine.Clear(ev.UserID, conversation.FlowRemove)
	return r.edit(ctx, ev, "Removed from "+pack.Title+".")
}

func (r *Router) cbAcrFont(ctx context.Context, ev *models.Event, rest string) error {
	idx, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("%w: bad font token", common.ErrorValidation)
	}

	ok := r.engine.UpdateAdaptive(ev.UserID, func(st *conversation.AdaptiveState) {
		st.Step = conversation.AdaptiveAwaitingBackground
		st.FontIndex = idx
	})
	if !ok {
		return r.edit(ctx, ev, "That dialog has expired, run /acr again.")
	}

	if ev.ChatID == 0 {
		return r.resp.SendKeyboard(ctx, ev.UserID, "Pick a background:", backgroundRows())
	}
	return r.resp.EditText(ctx, ev.ChatID, ev.MessageID, "Pick a background:", backgroundRows())
}

func (r *Router) cbAcrBackground(ctx context.Context, ev *models.Event, rest string) error {
	st, ok := r.engine.GetAdaptive(ev.UserID)
	if !ok || st.Step != conversation.AdaptiveAwaitingBackground {
		return r.edit(ctx, ev, "That dialog has expired, run /acr again.")
	}

	switch st.Content {
	case models.ContentGlyph:
		item := gateway.Item{FileID: st.FileID, Format: st.Format}
		if st.Emoji != "" {
			item.Emojis = []string{st.Emoji}
		}
		return r.adaptiveComplete(ctx, ev, item)

	case models.ContentPhoto:
		data, err := r.files.GetFileData(ctx, st.FileID)
		if err != nil {
			return err
		}
		return r.adaptiveComplete(ctx, ev, gateway.Item{Data: data, Format: "static"})
	}

	data, err := r.renderer.RenderText(st.Text, st.FontIndex, rest)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	return r.adaptiveComplete(ctx, ev, gateway.Item{Data: data, Format: "static"})
}

func (r *Router) cbMyPack(ctx context.Context, ev *models.Event, rest string) error {
	pack, err := r.ownPack(ctx, ev, rest)
	if err != nil {
		return err
	}

	count, err := r.packs.LiveCount(ctx, pack)
	if err != nil {
		return err
	}

	return r.edit(ctx, ev, fmt.Sprintf("%s (%s)\n%d items\n%s", pack.Title, pack.Kind, count, pack.Link))
}
