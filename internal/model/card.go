package model

import "time"

// Card is an unredeemed prepaid payment card. Redeeming a card removes it
// from the 'cards' table and appends a UsedCard row; a code therefore
// exists in at most one of the two tables at any point in time.
type Card struct {
	ID     uint64
	UUID   string
	Amount int
	Code   string
}

// UsedCard is the immutable record of a completed redemption.
// BalanceAfterUse snapshots the account balance right after the credit.
type UsedCard struct {
	ID              uint64
	UUID            string
	Amount          int
	Code            string
	BalanceAfterUse float64
	UsedAt          time.Time
	UserID          uint64
}
