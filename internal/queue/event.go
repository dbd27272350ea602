// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// Queue names used on the broker.
const (
	CardRedeemedQueue        = "card.redeemed"
	AccountStateChangedQueue = "account.state_changed"
)

// CardRedeemedEvent is published after a redemption transaction commits.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type CardRedeemedEvent struct {
	UserUUID        string  `json:"user_uuid"`
	Username        string  `json:"username"`
	CardCode        string  `json:"card_code"`
	Amount          int     `json:"amount"`
	BalanceAfterUse float64 `json:"balance_after_use"`
	UsedAt          string  `json:"used_at"`
}

// AccountStateChangedEvent is published when an administrator activates,
// deactivates or deletes an account.
type AccountStateChangedEvent struct {
	UserUUID  string `json:"user_uuid"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	ChangedAt string `json:"changed_at"`
}
