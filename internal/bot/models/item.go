package models

import "time"

// Item is the ledger record of one pack member. Add/remove operations key
// on (PackID, FileID); FileID need not be unique across packs.
type Item struct {
	ID      int64
	PackID  int64
	FileID  string
	Emoji   string
	Kind    PackKind
	AddedAt time.Time
}
