// Package quota implements the tier quota policy as pure functions over the
// configured limits. Validation of a pack name happens before any remote
// call; item-count checks happen immediately before each remote append.
package quota

import (
	"github.com/dmitrijs2005/packsmith/internal/bot/config"
	"github.com/dmitrijs2005/packsmith/internal/bot/models"
)

type Policy struct {
	freeMaxStickers int
	freeMaxEmojis   int
	paidMaxItems    int

	freeNameMin int
	freeNameMax int
	paidNameMin int
	paidNameMax int
}

func NewPolicy(cfg *config.Config) *Policy {
	return &Policy{
		freeMaxStickers: cfg.FreeMaxStickers,
		freeMaxEmojis:   cfg.FreeMaxEmojis,
		paidMaxItems:    cfg.PaidMaxItems,
		freeNameMin:     cfg.FreePackNameMinLen,
		freeNameMax:     cfg.FreePackNameMaxLen,
		paidNameMin:     cfg.PaidPackNameMinLen,
		paidNameMax:     cfg.PaidPackNameMaxLen,
	}
}

// ItemCap returns the per-pack item limit for a pack of the given tier and
// kind.
func (p *Policy) ItemCap(paidPack bool, kind models.PackKind) int {
	if paidPack {
		return p.paidMaxItems
	}
	if kind == models.KindEmoji {
		return p.freeMaxEmojis
	}
	return p.freeMaxStickers
}

// CanAppend reports whether a pack currently holding current items may take
// one more.
func (p *Policy) CanAppend(paidPack bool, kind models.PackKind, current int) bool {
	return current < p.ItemCap(paidPack, kind)
}

// NameLengthRange returns the allowed pack name length range for the tier.
func (p *Policy) NameLengthRange(paid bool) (min, max int) {
	if paid {
		return p.paidNameMin, p.paidNameMax
	}
	return p.freeNameMin, p.freeNameMax
}

// ValidName reports whether the name length fits the tier's range. Length
// is counted in runes so multi-byte names are not penalized.
func (p *Policy) ValidName(paid bool, name string) bool {
	min, max := p.NameLengthRange(paid)
	n := len([]rune(name))
	return n >= min && n <= max
}

// PackCountCap returns how many packs of one kind a user may own.
// Zero means no cap.
func (p *Policy) PackCountCap(paid bool) int {
	if paid {
		return 0
	}
	return 1
}

// CanCreatePack reports whether a user owning existing packs of a kind may
// create another one of that kind.
func (p *Policy) CanCreatePack(paid bool, existing int) bool {
	cap := p.PackCountCap(paid)
	return cap == 0 || existing < cap
}
