package models

// ContentKind enumerates the closed set of inbound message payload shapes.
// The transport decides the kind exactly once; downstream code switches on
// it and never re-inspects raw updates.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentText
	ContentPhoto
	ContentGlyph   // custom emoji
	ContentSticker // regular sticker
	ContentDocument
)

// Content is the tagged-variant payload of an inbound message.
type Content struct {
	Kind ContentKind

	// Text is set for ContentText.
	Text string

	// FileID is the remote file reference for photo/glyph/sticker/document.
	FileID string

	// Emoji is the annotation Telegram attaches to sticker items, if any.
	Emoji string

	// Format is the remote item format ("static", "animated", "video").
	Format string
}

// PackKindFor returns the pack kind an incoming item naturally belongs to:
// glyphs and text target emoji packs, stickers and photos target sticker
// packs.
func (c Content) PackKindFor() (PackKind, bool) {
	switch c.Kind {
	case ContentGlyph, ContentText:
		return KindEmoji, true
	case ContentSticker, ContentPhoto:
		return KindSticker, true
	}
	return "", false
}
