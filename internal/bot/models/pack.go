package models

import "time"

// PackKind distinguishes the two remote pack categories.
type PackKind string

const (
	KindEmoji   PackKind = "emoji"
	KindSticker PackKind = "sticker"
)

// ParsePackKind maps a command argument to a PackKind.
func ParsePackKind(s string) (PackKind, bool) {
	switch s {
	case "emoji":
		return KindEmoji, true
	case "sticker":
		return KindSticker, true
	}
	return "", false
}

// Pack is the ledger record of a remotely hosted pack. A row exists only if
// the corresponding remote pack was successfully created; the slug (Name)
// is globally unique on the remote side and immutable.
type Pack struct {
	ID         int64
	UserID     int64
	Name       string // remote slug
	Title      string
	Kind       PackKind
	IsPaidPack bool
	Link       string
	CreatedAt  time.Time
}
