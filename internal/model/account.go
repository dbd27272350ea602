// Package model defines the domain types shared between repositories,
// services and handlers.
package model

import "time"

// Roles an account can hold. Role is an explicit column set at creation;
// it is never derived from the username.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Account activation states. New accounts start deactivated until an
// administrator activates them.
const (
	StateActivated   = "activated"
	StateDeactivated = "deactivated"
)

// Account mirrors the 'users' table. Balance only grows through card
// redemption; there is no recurring billing, so a tariff is informational.
type Account struct {
	ID           uint64
	UUID         string
	Username     string
	PasswordHash string
	Role         string
	Name         string
	Email        string
	Phone        string
	Address      string
	Tariff       string
	IP           string
	State        string
	Balance      float64
	CreatedAt    time.Time
}

// IsAdmin reports whether the account carries the admin role.
func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// Tariff describes a connection plan offered to customers.
type Tariff struct {
	Name string
	Cost int
}

// Tariffs lists the available plans, keyed by plan name.
var Tariffs = map[string]Tariff{
	"50m":  {Name: "50m", Cost: 100},
	"100m": {Name: "100m", Cost: 200},
	"200m": {Name: "200m", Cost: 300},
	"500m": {Name: "500m", Cost: 500},
}

// ValidTariff reports whether name is one of the offered plans.
func ValidTariff(name string) bool {
	_, ok := Tariffs[name]
	return ok
}

// ValidState reports whether s is a known account state.
func ValidState(s string) bool {
	return s == StateActivated || s == StateDeactivated
}
