package telegram

import (
	"regexp"
	"strings"
)

var (
	slugJunk    = regexp.MustCompile(`[^a-zA-Z0-9_]+`)
	packLinkRe  = regexp.MustCompile(`t\.me/(?:addstickers|addemoji)/([A-Za-z0-9_]+)`)
	bareSlugRe  = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// NormalizeSlug turns an arbitrary name into a remote-safe slug: runs of
// characters outside [A-Za-z0-9_] collapse to a single underscore, leading
// and trailing underscores are trimmed, and the result is lowercased.
func NormalizeSlug(base string) string {
	slug := slugJunk.ReplaceAllString(base, "_")
	slug = strings.Trim(slug, "_")
	return strings.ToLower(slug)
}

// ParsePackLink extracts the pack slug from a t.me/addstickers or
// t.me/addemoji link, or accepts a bare slug. Returns "" when the input
// matches neither form.
func ParsePackLink(link string) string {
	if m := packLinkRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if bareSlugRe.MatchString(link) {
		return link
	}
	return ""
}

// EmojiPackLink and StickerPackLink build the externally shareable links.
func EmojiPackLink(slug string) string   { return "https://t.me/addemoji/" + slug }
func StickerPackLink(slug string) string { return "https://t.me/addstickers/" + slug }
