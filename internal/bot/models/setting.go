package models

// Setting is a global key-value record; values are JSON-encoded.
type Setting struct {
	Key   string
	Value string
}

// SettingOwnerItemsForSale toggles whether owner-made items are for sale.
const SettingOwnerItemsForSale = "owner_items_for_sale"
