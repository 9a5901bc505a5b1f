// Package gateway declares the remote pack-hosting operations the services
// depend on. The Telegram implementation lives in internal/bot/telegram;
// tests substitute fakes. Remote calls are real side-effecting mutations
// with no idempotency guarantees, so callers decide ordering against the
// local ledger (remote-first, ledger-second).
package gateway

import (
	"context"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

// Item is one pack member to be sent to the remote side: either a reference
// to an already-uploaded file (FileID) or raw PNG bytes (Data).
type Item struct {
	FileID string
	Data   []byte
	Format string
	Emojis []string
}

// RemotePack is the remote view of a pack, used for duplication and live
// item counts.
type RemotePack struct {
	Name  string
	Title string
	Kind  models.PackKind
	Items []Item
}

type Gateway interface {
	// CreatePack creates the remote pack with its first item. Fails with
	// common.ErrorRemote on slug collision, invalid item, or transport
	// failure.
	CreatePack(ctx context.Context, ownerID int64, slug, title string, first Item, kind models.PackKind) error

	// AppendItem adds one item to an existing remote pack.
	AppendItem(ctx context.Context, ownerID int64, slug string, item Item) error

	// RemoveItem removes an item by its remote file reference. Best-effort:
	// an already-absent item is indistinguishable from a true failure.
	RemoveItem(ctx context.Context, fileID string) error

	// FetchPack returns the remote pack contents in order.
	FetchPack(ctx context.Context, slug string) (*RemotePack, error)

	// BotUsername returns the bot's own username, used to qualify free-tier
	// slugs.
	BotUsername(ctx context.Context) (string, error)
}
