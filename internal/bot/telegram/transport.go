package telegram

import (
	"context"
	"strings"

	tg "github.com/go-telegram/bot"
	tgm "github.com/go-telegram/bot/models"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/logging"
)

// Handler consumes transport-independent events. Implementations must not
// return errors: a failed event is the handler's problem to log and answer,
// never a reason to stop the update loop.
type Handler interface {
	HandleEvent(ctx context.Context, ev *models.Event)
}

// Transport owns the long-polling update loop and the one place where raw
// Telegram updates are converted into models.Event values.
type Transport struct {
	bot     *tg.Bot
	client  *Client
	handler Handler
	logger  logging.Logger
}

func NewTransport(token string, logger logging.Logger) (*Transport, error) {
	t := &Transport{logger: logger.With("module", "telegram")}

	b, err := tg.New(token, tg.WithDefaultHandler(t.onUpdate))
	if err != nil {
		return nil, err
	}

	t.bot = b
	t.client = NewClient(b, token)

	return t, nil
}

// Client returns the gateway/responder implementation bound to this bot.
func (t *Transport) Client() *Client {
	return t.client
}

// SetHandler installs the event consumer; must be called before Run.
func (t *Transport) SetHandler(h Handler) {
	t.handler = h
}

// Run blocks polling for updates until ctx is canceled.
func (t *Transport) Run(ctx context.Context) {
	t.logger.Info(ctx, "starting update loop")
	t.bot.Start(ctx)
	t.logger.Info(ctx, "update loop stopped")
}

func (t *Transport) onUpdate(ctx context.Context, _ *tg.Bot, update *tgm.Update) {
	if t.handler == nil {
		return
	}
	ev, ok := MapUpdate(update)
	if !ok {
		return
	}
	t.handler.HandleEvent(ctx, ev)
}

// MapUpdate converts a raw update into the closed Event shape, deciding the
// content variant exactly once. Updates without a supported payload are
// dropped.
func MapUpdate(update *tgm.Update) (*models.Event, bool) {
	switch {
	case update.PreCheckoutQuery != nil:
		q := update.PreCheckoutQuery
		return &models.Event{
			Kind:          models.EventPreCheckout,
			UserID:        q.From.ID,
			ChatPrivate:   true,
			PreCheckoutID: q.ID,
			Payload:       q.InvoicePayload,
		}, true

	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		ev := &models.Event{
			Kind:        models.EventCallback,
			UserID:      q.From.ID,
			ChatPrivate: true,
			CallbackID:  q.ID,
			Token:       q.Data,
		}
		if msg := q.Message.Message; msg != nil {
			ev.ChatID = msg.Chat.ID
			ev.MessageID = msg.ID
			ev.ChatPrivate = msg.Chat.Type == "private"
		}
		return ev, true

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return nil, false
		}

		ev := &models.Event{
			UserID:      msg.From.ID,
			ChatID:      msg.Chat.ID,
			ChatPrivate: msg.Chat.Type == "private",
			MessageID:   msg.ID,
		}

		if msg.SuccessfulPayment != nil {
			ev.Kind = models.EventPaymentDone
			ev.Payload = msg.SuccessfulPayment.InvoicePayload
			return ev, true
		}

		if strings.HasPrefix(msg.Text, "/") {
			fields := strings.Fields(msg.Text)
			name := strings.TrimPrefix(fields[0], "/")
			// strip the @botname suffix of group-addressed commands
			if at := strings.Index(name, "@"); at >= 0 {
				name = name[:at]
			}
			ev.Kind = models.EventCommand
			ev.Command = name
			ev.Args = fields[1:]
			return ev, true
		}

		content, ok := mapContent(msg)
		if !ok {
			return nil, false
		}
		ev.Kind = models.EventMessage
		ev.Content = content
		return ev, true
	}

	return nil, false
}

func mapContent(msg *tgm.Message) (models.Content, bool) {
	switch {
	case msg.Sticker != nil:
		s := msg.Sticker
		kind := models.ContentSticker
		if s.Type == "custom_emoji" {
			kind = models.ContentGlyph
		}
		format := "static"
		if s.IsAnimated {
			format = "animated"
		} else if s.IsVideo {
			format = "video"
		}
		return models.Content{
			Kind:   kind,
			FileID: s.FileID,
			Emoji:  s.Emoji,
			Format: format,
		}, true

	case len(msg.Photo) > 0:
		// the last size is the largest
		return models.Content{
			Kind:   models.ContentPhoto,
			FileID: msg.Photo[len(msg.Photo)-1].FileID,
			Format: "static",
		}, true

	case msg.Document != nil:
		return models.Content{
			Kind:   models.ContentDocument,
			FileID: msg.Document.FileID,
		}, true

	case msg.Text != "":
		return models.Content{
			Kind: models.ContentText,
			Text: msg.Text,
		}, true
	}

	return models.Content{}, false
}
