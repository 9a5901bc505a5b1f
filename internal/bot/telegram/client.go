// Package telegram adapts the Telegram Bot API (via go-telegram/bot) to the
// gateway and responder interfaces the rest of the bot consumes. All
// remote-call failures are wrapped as common.ErrorRemote so callers never
// see raw transport errors.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"

	tg "github.com/go-telegram/bot"
	tgm "github.com/go-telegram/bot/models"

	"github.com/dmitrijs2005/packsmith/internal/bot/gateway"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/common"
)

const defaultAPIURL = "https://api.telegram.org"

type Client struct {
	bot    *tg.Bot
	token  string
	apiURL string
	httpc  *http.Client

	mu       sync.Mutex
	username string
}

func NewClient(b *tg.Bot, token string) *Client {
	return &Client{bot: b, token: token, apiURL: defaultAPIURL, httpc: http.DefaultClient}
}

func remoteErr(err error) error {
	return fmt.Errorf("%w: %v", common.ErrorRemote, err)
}

func inputSticker(item gateway.Item) tgm.InputSticker {
	format := item.Format
	if format == "" {
		format = "static"
	}
	emojis := item.Emojis
	if len(emojis) == 0 {
		emojis = []string{"😀"}
	}

	var file tgm.InputFile
	if item.FileID != "" {
		file = &tgm.InputFileString{Data: item.FileID}
	} else {
		file = &tgm.InputFileUpload{Filename: "item.png", Data: bytes.NewReader(item.Data)}
	}

	return tgm.InputSticker{
		Sticker:   file,
		Format:    format,
		EmojiList: emojis,
	}
}

// stickerPayload is the InputSticker JSON shape createNewStickerSet expects.
type stickerPayload struct {
	Sticker   string   `json:"sticker"`
	Format    string   `json:"format"`
	EmojiList []string `json:"emoji_list"`
}

// CreatePack calls createNewStickerSet directly over HTTP: the generated
// params struct in go-telegram/bot v1.11.1 declares Stickers with the output
// Sticker type instead of InputSticker, so the typed method cannot carry an
// upload.
func (c *Client) CreatePack(ctx context.Context, ownerID int64, slug, title string, first gateway.Item, kind models.PackKind) error {
	stickerType := "regular"
	if kind == models.KindEmoji {
		stickerType = "custom_emoji"
	}

	payload := stickerPayload{
		Format:    first.Format,
		EmojiList: first.Emojis,
	}
	if payload.Format == "" {
		payload.Format = "static"
	}
	if len(payload.EmojiList) == 0 {
		payload.EmojiList = []string{"😀"}
	}

	var form bytes.Buffer
	w := multipart.NewWriter(&form)

	if first.FileID != "" {
		payload.Sticker = first.FileID
	} else {
		payload.Sticker = "attach://item0"
		part, err := w.CreateFormFile("item0", "item.png")
		if err != nil {
			return remoteErr(err)
		}
		if _, err := part.Write(first.Data); err != nil {
			return remoteErr(err)
		}
	}

	stickers, err := json.Marshal([]stickerPayload{payload})
	if err != nil {
		return remoteErr(err)
	}

	fields := map[string]string{
		"user_id":      strconv.FormatInt(ownerID, 10),
		"name":         slug,
		"title":        title,
		"sticker_type": stickerType,
		"stickers":     string(stickers),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return remoteErr(err)
		}
	}
	if err := w.Close(); err != nil {
		return remoteErr(err)
	}

	url := c.apiURL + "/bot" + c.token + "/createNewStickerSet"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &form)
	if err != nil {
		return remoteErr(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return remoteErr(err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return remoteErr(err)
	}
	if !result.OK {
		return remoteErr(fmt.Errorf("createNewStickerSet: %s", result.Description))
	}

	return nil
}

func (c *Client) AppendItem(ctx context.Context, ownerID int64, slug string, item gateway.Item) error {
	_, err := c.bot.AddStickerToSet(ctx, &tg.AddStickerToSetParams{
		UserID:  ownerID,
		Name:    slug,
		Sticker: inputSticker(item),
	})
	if err != nil {
		return remoteErr(err)
	}

	return nil
}

func (c *Client) RemoveItem(ctx context.Context, fileID string) error {
	_, err := c.bot.DeleteStickerFromSet(ctx, &tg.DeleteStickerFromSetParams{
		Sticker: fileID,
	})
	if err != nil {
		return remoteErr(err)
	}

	return nil
}

// GetFileData downloads a file by its remote reference. Used for photo
// conversion and backup import.
func (c *Client) GetFileData(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.bot.GetFile(ctx, &tg.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, remoteErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, remoteErr(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, remoteErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, remoteErr(fmt.Errorf("file download: status %d", resp.StatusCode))
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) FetchPack(ctx context.Context, slug string) (*gateway.RemotePack, error) {
	set, err := c.bot.GetStickerSet(ctx, &tg.GetStickerSetParams{Name: slug})
	if err != nil {
		return nil, remoteErr(err)
	}

	kind := models.KindSticker
	if set.StickerType == "custom_emoji" {
		kind = models.KindEmoji
	}

	pack := &gateway.RemotePack{
		Name:  set.Name,
		Title: set.Title,
		Kind:  kind,
	}
	for _, s := range set.Stickers {
		format := "static"
		if s.IsAnimated {
			format = "animated"
		} else if s.IsVideo {
			format = "video"
		}
		var emojis []string
		if s.Emoji != "" {
			emojis = []string{s.Emoji}
		}
		pack.Items = append(pack.Items, gateway.Item{
			FileID: s.FileID,
			Format: format,
			Emojis: emojis,
		})
	}

	return pack, nil
}

func (c *Client) BotUsername(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.username != "" {
		return c.username, nil
	}

	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return "", remoteErr(err)
	}
	c.username = me.Username

	return c.username, nil
}

// --- outbound side (router.Responder) ---

func keyboard(rows [][]models.Button) *tgm.InlineKeyboardMarkup {
	markup := &tgm.InlineKeyboardMarkup{}
	for _, row := range rows {
		var line []tgm.InlineKeyboardButton
		for _, b := range row {
			line = append(line, tgm.InlineKeyboardButton{
				Text:         b.Text,
				CallbackData: b.Token,
				URL:          b.URL,
			})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &tg.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return remoteErr(err)
	}
	return nil
}

func (c *Client) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]models.Button) error {
	_, err := c.bot.SendMessage(ctx, &tg.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard(rows),
	})
	if err != nil {
		return remoteErr(err)
	}
	return nil
}

func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, rows [][]models.Button) error {
	params := &tg.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
	}
	if rows != nil {
		params.ReplyMarkup = keyboard(rows)
	}
	if _, err := c.bot.EditMessageText(ctx, params); err != nil {
		return remoteErr(err)
	}
	return nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	_, err := c.bot.AnswerCallbackQuery(ctx, &tg.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
	})
	if err != nil {
		return remoteErr(err)
	}
	return nil
}

func (c *Client) AnswerPreCheckout(ctx context.Context, preCheckoutID string, ok bool, errorMessage string) error {
	_, err := c.bot.AnswerPreCheckoutQuery(ctx, &tg.AnswerPreCheckoutQueryParams{
		PreCheckoutQueryID: preCheckoutID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	if err != nil {
		return remoteErr(err)
	}
	return nil
}

// SendInvoice issues a Telegram Stars (XTR) invoice; the payload comes back
// verbatim in the pre-checkout and successful-payment events.
func (c *Client) SendInvoice(ctx context.Context, chatID int64, title, description, payload string, amount int) error {
	_, err := c.bot.SendInvoice(ctx, &tg.SendInvoiceParams{
		ChatID:      chatID,
		Title:       title,
		Description: description,
		Payload:     payload,
		Currency:    "XTR",
		Prices: []tgm.LabeledPrice{
			{Label: title, Amount: amount},
		},
	})
	if err != nil {
		return remoteErr(err)
	}
	return nil
}
