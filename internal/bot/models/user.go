// Package models defines the data models persisted in the ledger database
// and the inbound event shapes decided once at the transport boundary.
package models

import "time"

type User struct {
	ID               int64
	IsPaid           bool
	IsAdmin          bool
	FreePackUses     int
	PaidPackUses     int
	AdaptivePackName string // empty when the user has no adaptive pack
	CreatedAt        time.Time
}
