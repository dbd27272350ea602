package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravets/isp-cabinet/internal/middleware"
	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/repository"
)

var (
	customerAcc = model.Account{
		ID: 3, UUID: "cust-uuid", Username: "john", Role: model.RoleCustomer,
		Name: "John Doe", Phone: "555-0101", Tariff: "100m",
		IP: "10.0.0.1", State: model.StateActivated, Balance: 100,
	}
	adminAcc = model.Account{
		ID: 1, UUID: "admin-uuid", Username: "admin", Role: model.RoleAdmin,
		IP: "10.0.0.2", State: model.StateActivated,
	}
)

// principalAccounts resolves uuids to the two canonical test accounts.
func principalAccounts() *fakeAccounts {
	return &fakeAccounts{
		GetByUUIDFunc: func(_ context.Context, id string) (model.Account, error) {
			switch id {
			case customerAcc.UUID:
				return customerAcc, nil
			case adminAcc.UUID:
				return adminAcc, nil
			}
			return model.Account{}, repository.ErrNotFound
		},
		ListAllFunc: func(context.Context) ([]model.Account, error) {
			return []model.Account{adminAcc, customerAcc}, nil
		},
	}
}

func asPrincipal(c echo.Context, uuid, role string) {
	c.Set(middleware.CtxUserUUID, uuid)
	c.Set(middleware.CtxRole, role)
}

func TestUserList_AdminSeesReducedViews(t *testing.T) {
	h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})
	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/users", "")
	asPrincipal(c, adminAcc.UUID, model.RoleAdmin)
	require.NoError(t, h.List(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var views []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.NotContains(t, views[1], "phone")
	assert.NotContains(t, views[1], "name")
	assert.Equal(t, "john", views[1]["username"])
}

func TestUserList_CustomerSeesOwnFullProfile(t *testing.T) {
	h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})
	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/users", "")
	asPrincipal(c, customerAcc.UUID, model.RoleCustomer)
	require.NoError(t, h.List(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var view map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "cust-uuid", view["uuid"])
	assert.Equal(t, "555-0101", view["phone"])
	assert.Equal(t, 100.0, view["balance"])
}

func TestUserDetail(t *testing.T) {
	tests := []struct {
		name      string
		principal model.Account
		target    string
		wantCode  int
		wantPhone bool
	}{
		{"self gets full profile", customerAcc, "cust-uuid", http.StatusOK, true},
		{"admin gets reduced view of other", adminAcc, "cust-uuid", http.StatusOK, false},
		{"customer denied other profile", customerAcc, "admin-uuid", http.StatusForbidden, false},
		{"admin gets 404 for unknown", adminAcc, "ghost-uuid", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})
			c, rec := newJSONContext(t, http.MethodGet, "/api/v1/users/"+tt.target, "")
			c.SetParamNames("uuid")
			c.SetParamValues(tt.target)
			asPrincipal(c, tt.principal.UUID, tt.principal.Role)
			require.NoError(t, h.Detail(c))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			var view map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
			if tt.wantPhone {
				assert.Equal(t, "555-0101", view["phone"])
			} else {
				assert.NotContains(t, view, "phone")
			}
		})
	}
}

func TestRedeemCard_Success(t *testing.T) {
	redeemer := &fakeRedeemer{RedeemFunc: func(_ context.Context, account model.Account, code string) (model.UsedCard, error) {
		assert.Equal(t, customerAcc.UUID, account.UUID)
		assert.Equal(t, "000042", code)
		return model.UsedCard{
			Amount: 400, Code: code, BalanceAfterUse: 500,
			UsedAt: time.Now().UTC(), UserID: account.ID,
		}, nil
	}}
	h := NewUserHandler(principalAccounts(), redeemer, &fakeLedger{})

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/users/cust-uuid", `{"code":"000042"}`)
	c.SetParamNames("uuid")
	c.SetParamValues("cust-uuid")
	asPrincipal(c, customerAcc.UUID, model.RoleCustomer)
	require.NoError(t, h.RedeemCard(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 500.0, resp["balance"])
	assert.Equal(t, 400.0, resp["amount"])
}

func TestRedeemCard_SelfServiceOnly(t *testing.T) {
	h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})

	// Even an admin cannot redeem onto someone else's account.
	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/users/cust-uuid", `{"code":"000042"}`)
	c.SetParamNames("uuid")
	c.SetParamValues("cust-uuid")
	asPrincipal(c, adminAcc.UUID, model.RoleAdmin)
	require.NoError(t, h.RedeemCard(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied.")
}

func TestRedeemCard_WrongCode(t *testing.T) {
	redeemer := &fakeRedeemer{RedeemFunc: func(context.Context, model.Account, string) (model.UsedCard, error) {
		return model.UsedCard{}, repository.ErrNotFound
	}}
	h := NewUserHandler(principalAccounts(), redeemer, &fakeLedger{})

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/users/cust-uuid", `{"code":"999999"}`)
	c.SetParamNames("uuid")
	c.SetParamValues("cust-uuid")
	asPrincipal(c, customerAcc.UUID, model.RoleCustomer)
	require.NoError(t, h.RedeemCard(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong code.")
}

func TestRedeemCard_MissingCode(t *testing.T) {
	h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})

	c, rec := newJSONContext(t, http.MethodPost, "/api/v1/users/cust-uuid", `{"code":"  "}`)
	c.SetParamNames("uuid")
	c.SetParamValues("cust-uuid")
	asPrincipal(c, customerAcc.UUID, model.RoleCustomer)
	require.NoError(t, h.RedeemCard(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	usedAt := time.Date(2024, 6, 10, 9, 30, 0, 0, time.UTC)
	ledger := &fakeLedger{HistoryFunc: func(_ context.Context, userID uint64, limit int) ([]model.UsedCard, error) {
		assert.Equal(t, customerAcc.ID, userID)
		assert.Equal(t, 10, limit)
		return []model.UsedCard{
			{UUID: "u2", Amount: 400, Code: "000002", BalanceAfterUse: 500, UsedAt: usedAt, UserID: userID},
		}, nil
	}}

	tests := []struct {
		name      string
		principal model.Account
		wantCode  int
	}{
		{"self", customerAcc, http.StatusOK},
		{"admin for other account", adminAcc, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, ledger)
			c, rec := newJSONContext(t, http.MethodGet, "/api/v1/users/cust-uuid/history", "")
			c.SetParamNames("uuid")
			c.SetParamValues("cust-uuid")
			asPrincipal(c, tt.principal.UUID, tt.principal.Role)
			require.NoError(t, h.History(c))

			require.Equal(t, tt.wantCode, rec.Code)
			var views []map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
			require.Len(t, views, 1)
			assert.Equal(t, "000002", views[0]["code"])
			assert.Equal(t, 500.0, views[0]["balance_after_use"])
		})
	}
}

func TestHistory_OtherCustomerDenied(t *testing.T) {
	h := NewUserHandler(principalAccounts(), &fakeRedeemer{}, &fakeLedger{})
	c, rec := newJSONContext(t, http.MethodGet, "/api/v1/users/admin-uuid/history", "")
	c.SetParamNames("uuid")
	c.SetParamValues("admin-uuid")
	asPrincipal(c, customerAcc.UUID, model.RoleCustomer)
	require.NoError(t, h.History(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
