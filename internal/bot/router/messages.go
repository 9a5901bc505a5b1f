package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/packsmith/internal/bot/conversation"
	"github.com/dmitrijs2005/packsmith/internal/bot/gateway"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/bot/render"
	"github.com/dmitrijs2005/packsmith/internal/common"
)

// handleMessage routes a free-form message: an active flow gets first claim
// on the input, otherwise an item message opens the add-to-pack picker.
func (r *Router) handleMessage(ctx context.Context, ev *models.Event) error {
	if r.engine.GetImport(ev.UserID) && ev.Content.Kind == models.ContentDocument {
		return r.importDocument(ctx, ev)
	}
	if st, ok := r.engine.GetCreate(ev.UserID); ok {
		return r.createFlowInput(ctx, ev, st)
	}
	if st, ok := r.engine.GetAdaptive(ev.UserID); ok && st.Step == conversation.AdaptiveAwaitingInput {
		return r.adaptiveFlowInput(ctx, ev)
	}
	if st, ok := r.engine.GetRemove(ev.UserID); ok && st.Step == conversation.RemoveAwaitingItem {
		return r.removeFlowInput(ctx, ev, st)
	}

	if _, ok := ev.Content.PackKindFor(); ok {
		return r.offerAddTo(ctx, ev)
	}
	return nil
}

func (r *Router) importDocument(ctx context.Context, ev *models.Event) error {
	data, err := r.files.GetFileData(ctx, ev.Content.FileID)
	if err != nil {
		return err
	}

	packs, items, err := r.backup.Import(ctx, ev.UserID, data)
	if err != nil {
		return err
	}

	r.engine.Clear(ev.UserID, conversation.FlowImport)
	r.reply(ctx, ev, fmt.Sprintf("Imported %d packs and %d items.", packs, items))
	return nil
}

func (r *Router) createFlowInput(ctx context.Context, ev *models.Event, st conversation.CreateState) error {
	switch st.Step {
	case conversation.CreateAwaitingName:
		if ev.Content.Kind != models.ContentText {
			r.reply(ctx, ev, "Send the pack name as plain text.")
			return nil
		}
		name := ev.Content.Text
		if !r.policy.ValidName(st.PaidPack, name) {
			min, max := r.policy.NameLengthRange(st.PaidPack)
			r.reply(ctx, ev, fmt.Sprintf("The name must be %d to %d characters, try again.", min, max))
			return nil
		}
		r.engine.UpdateCreate(ev.UserID, func(st *conversation.CreateState) {
			st.Step = conversation.CreateAwaitingFirstItem
			st.Name = name
			st.Title = name
		})
		if st.Kind == models.KindEmoji {
			r.reply(ctx, ev, "Now send the first item: a custom emoji or text.")
		} else {
			r.reply(ctx, ev, "Now send the first item: a sticker or a photo.")
		}
		return nil

	case conversation.CreateAwaitingFirstItem:
		if kind, ok := ev.Content.PackKindFor(); !ok || kind != st.Kind {
			r.reply(ctx, ev, fmt.Sprintf("That does not fit a %s pack, send another item or /cancel.", st.Kind))
			return nil
		}

		item, err := r.itemFromContent(ctx, ev.Content, -1, render.BackgroundNone)
		if err != nil {
			return err
		}

		user, err := r.users.GetOrCreate(ctx, ev.UserID)
		if err != nil {
			return err
		}

		pack, err := r.packs.CreatePack(ctx, user, st.Name, st.Title, st.Kind, st.PaidPack, item)
		if err != nil {
			if errors.Is(err, common.ErrorQuotaExceeded) {
				r.engine.Clear(ev.UserID, conversation.FlowCreate)
			}
			return err
		}

		// commit before answering, so a resend finds no state (fresh event)
		r.engine.Clear(ev.UserID, conversation.FlowCreate)
		r.reply(ctx, ev, "Pack created: "+pack.Link)
		return nil
	}
	return nil
}

func (r *Router) adaptiveFlowInput(ctx context.Context, ev *models.Event) error {
	switch ev.Content.Kind {
	case models.ContentText:
		text := ev.Content.Text
		fonts := r.renderer.FontNames()
		if len(fonts) == 0 {
			// nothing to choose, go straight to the background step
			r.engine.UpdateAdaptive(ev.UserID, func(st *conversation.AdaptiveState) {
				st.Step = conversation.AdaptiveAwaitingBackground
				st.Content = models.ContentText
				st.Text = text
				st.FontIndex = -1
			})
			return r.resp.SendKeyboard(ctx, ev.ChatID, "Pick a background:", backgroundRows())
		}

		r.engine.UpdateAdaptive(ev.UserID, func(st *conversation.AdaptiveState) {
			st.Step = conversation.AdaptiveAwaitingFont
			st.Content = models.ContentText
			st.Text = text
		})
		var rows [][]models.Button
		for i, name := range fonts {
			rows = append(rows, []models.Button{{Text: name, Token: fmt.Sprintf("acr_font|%d", i)}})
		}
		return r.resp.SendKeyboard(ctx, ev.ChatID, "Pick a font:", rows)

	case models.ContentGlyph, models.ContentPhoto:
		// every input goes through the background picker; for file-backed
		// input the choice is recorded but only rendered text uses it
		content, fileID, format, emoji := ev.Content.Kind, ev.Content.FileID, ev.Content.Format, ev.Content.Emoji
		r.engine.UpdateAdaptive(ev.UserID, func(st *conversation.AdaptiveState) {
			st.Step = conversation.AdaptiveAwaitingBackground
			st.Content = content
			st.FileID = fileID
			st.Format = format
			st.Emoji = emoji
		})
		return r.resp.SendKeyboard(ctx, ev.ChatID, "Pick a background:", backgroundRows())
	}

	r.reply(ctx, ev, "The adaptive pack takes text, photos or custom emoji.")
	return nil
}

// adaptiveComplete creates the user's adaptive pack on first use and appends
// to it afterwards.
func (r *Router) adaptiveComplete(ctx context.Context, ev *models.Event, item gateway.Item) error {
	user, err := r.users.GetOrCreate(ctx, ev.UserID)
	if err != nil {
		return err
	}

	if user.AdaptivePackName == "" {
		pack, err := r.packs.CreateAdaptivePack(ctx, user, item)
		if err != nil {
			return err
		}
		r.engine.Clear(ev.UserID, conversation.FlowAdaptive)
		r.reply(ctx, ev, "Your adaptive pack is ready: "+pack.Link)
		return nil
	}

	pack, err := r.packs.AdaptivePack(ctx, user)
	if err != nil {
		return err
	}
	if err := r.packs.AppendItem(ctx, pack, item); err != nil {
		if errors.Is(err, common.ErrorQuotaExceeded) {
			r.engine.Clear(ev.UserID, conversation.FlowAdaptive)
		}
		return err
	}

	r.engine.Clear(ev.UserID, conversation.FlowAdaptive)
	r.reply(ctx, ev, "Added to your adaptive pack: "+pack.Link)
	return nil
}

func (r *Router) removeFlowInput(ctx context.Context, ev *models.Event, st conversation.RemoveState) error {
	if ev.Content.FileID == "" {
		r.reply(ctx, ev, "Send the item you want removed, or /cancel.")
		return nil
	}

	pack, err := r.packs.GetPack(ctx, st.PackID)
	if err != nil {
		return err
	}
	if pack.UserID != ev.UserID {
		return common.ErrorUnauthorized
	}

	item, err := r.packs.FindItem(ctx, pack.ID, ev.Content.FileID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		// not in the ledger: remove remotely right away, nothing to confirm
		if _, err := r.packs.RemoveItem(ctx, pack, ev.Content.FileID); err != nil {
			return err
		}
		r.engine.Clear(ev.UserID, conversation.FlowRemove)
		r.reply(ctx, ev, "Removed.")
		return nil
	}

	// the confirmation token is self-contained so it works after restart
	rows := [][]models.Button{{
		{Text: "Yes, remove it", Token: fmt.Sprintf("remconf|%d|%d", pack.ID, item.ID)},
		{Text: "No", Token: "remno|"},
	}}
	return r.resp.SendKeyboard(ctx, ev.ChatID, "Remove this item from "+pack.Title+"?", rows)
}

// offerAddTo stashes the item and offers the user's matching packs.
func (r *Router) offerAddTo(ctx context.Context, ev *models.Event) error {
	kind, _ := ev.Content.PackKindFor()
	packs, err := r.packs.ListPacksByKind(ctx, ev.UserID, kind)
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		r.reply(ctx, ev, fmt.Sprintf("You have no %s packs yet. Start with /create %s.", kind, kind))
		return nil
	}

	r.setPending(ev.UserID, ev.Content)

	var rows [][]models.Button
	for _, p := range packs {
		rows = append(rows, []models.Button{{
			Text:  p.Title,
			Token: fmt.Sprintf("addto|%d", p.ID),
		}})
	}
	return r.resp.SendKeyboard(ctx, ev.ChatID, "Add it to which pack?", rows)
}

// itemFromContent converts inbound content into a remote item: file-backed
// content passes through by reference, photos are downloaded, text is
// rendered.
func (r *Router) itemFromContent(ctx context.Context, content models.Content, fontIndex int, background string) (gateway.Item, error) {
	switch content.Kind {
	case models.ContentGlyph, models.ContentSticker:
		item := gateway.Item{FileID: content.FileID, Format: content.Format}
		if content.Emoji != "" {
			item.Emojis = []string{content.Emoji}
		}
		return item, nil

	case models.ContentPhoto:
		data, err := r.files.GetFileData(ctx, content.FileID)
		if err != nil {
			return gateway.Item{}, err
		}
		return gateway.Item{Data: data, Format: "static"}, nil

	case models.ContentText:
		data, err := r.renderer.RenderText(content.Text, fontIndex, background)
		if err != nil {
			return gateway.Item{}, fmt.Errorf("%w: %v", common.ErrorValidation, err)
		}
		return gateway.Item{Data: data, Format: "static"}, nil
	}

	return gateway.Item{}, fmt.Errorf("%w: unsupported content", common.ErrorValidation)
}

func (r *Router) handlePreCheckout(ctx context.Context, ev *models.Event) error {
	if err := r.payments.Validate(ev.Payload); err != nil {
		r.logger.Warn(ctx, "pre-checkout declined", "user_id", ev.UserID, "error", err)
		return r.resp.AnswerPreCheckout(ctx, ev.PreCheckoutID, false, "This invoice is no longer valid.")
	}
	return r.resp.AnswerPreCheckout(ctx, ev.PreCheckoutID, true, "")
}

func (r *Router) handlePaymentDone(ctx context.Context, ev *models.Event) error {
	msg, err := r.payments.Settle(ctx, ev.Payload)
	if err != nil {
		// the user paid and got nothing: log loudly, tell them to reach out
		r.logger.Error(ctx, "settlement failed", "user_id", ev.UserID, "payload", ev.Payload, "error", err)
		r.reply(ctx, ev, "The payment went through but something failed on our side. Please contact support.")
		return nil
	}
	r.reply(ctx, ev, msg)
	return nil
}

func backgroundRows() [][]models.Button {
	return [][]models.Button{
		{{Text: "None", Token: "acr_bg|" + render.BackgroundNone}},
		{{Text: "Translucent", Token: "acr_bg|" + render.BackgroundTranslucent}},
		{{Text: "Solid", Token: "acr_bg|" + render.BackgroundOnly}},
	}
}
