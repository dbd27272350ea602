package handler

import (
	"time"

	"github.com/mkravets/isp-cabinet/internal/model"
)

// Response DTOs are built explicitly per role: the self view carries the
// full profile, the admin view drops PII (name, email, phone). The service
// layer decides which to build; there is no shared schema with conditional
// field visibility.

type fullUserView struct {
	UUID      string    `json:"uuid"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Tariff    string    `json:"tariff,omitempty"`
	IP        string    `json:"ip"`
	State     string    `json:"state"`
	Balance   float64   `json:"balance"`
}

type adminUserView struct {
	UUID      string    `json:"uuid"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	Tariff    string    `json:"tariff,omitempty"`
	IP        string    `json:"ip"`
	State     string    `json:"state"`
	Balance   float64   `json:"balance"`
}

type usedCardView struct {
	UUID            string    `json:"uuid"`
	Amount          int       `json:"amount"`
	Code            string    `json:"code"`
	BalanceAfterUse float64   `json:"balance_after_use"`
	UsedAt          time.Time `json:"used_at"`
}

func newFullUserView(a model.Account) fullUserView {
	return fullUserView{
		UUID:      a.UUID,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
		Name:      a.Name,
		Email:     a.Email,
		Phone:     a.Phone,
		Address:   a.Address,
		Tariff:    a.Tariff,
		IP:        a.IP,
		State:     a.State,
		Balance:   a.Balance,
	}
}

func newAdminUserView(a model.Account) adminUserView {
	return adminUserView{
		UUID:      a.UUID,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
		Tariff:    a.Tariff,
		IP:        a.IP,
		State:     a.State,
		Balance:   a.Balance,
	}
}

func newAdminUserViews(accounts []model.Account) []adminUserView {
	out := make([]adminUserView, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAdminUserView(a))
	}
	return out
}

func newUsedCardViews(cards []model.UsedCard) []usedCardView {
	out := make([]usedCardView, 0, len(cards))
	for _, u := range cards {
		out = append(out, usedCardView{
			UUID:            u.UUID,
			Amount:          u.Amount,
			Code:            u.Code,
			BalanceAfterUse: u.BalanceAfterUse,
			UsedAt:          u.UsedAt,
		})
	}
	return out
}
