package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/repository"
)

// Func-field fakes let each test stub exactly the calls it expects.

type fakeAccounts struct {
	GetByUsernameFunc func(ctx context.Context, username string) (model.Account, error)
	GetByUUIDFunc     func(ctx context.Context, id string) (model.Account, error)
	CreateFunc        func(ctx context.Context, a *model.Account, rawPassword string, cost int) error
	ListAllFunc       func(ctx context.Context) ([]model.Account, error)
}

func (f *fakeAccounts) GetByUsername(ctx context.Context, username string) (model.Account, error) {
	return f.GetByUsernameFunc(ctx, username)
}

func (f *fakeAccounts) GetByUUID(ctx context.Context, id string) (model.Account, error) {
	return f.GetByUUIDFunc(ctx, id)
}

func (f *fakeAccounts) Create(ctx context.Context, a *model.Account, rawPassword string, cost int) error {
	return f.CreateFunc(ctx, a, rawPassword, cost)
}

func (f *fakeAccounts) ListAll(ctx context.Context) ([]model.Account, error) {
	return f.ListAllFunc(ctx)
}

type fakeTokens struct {
	StoreRefreshFunc    func(ctx context.Context, userID uint64, jti string, exp time.Time) error
	ValidateRefreshFunc func(ctx context.Context, jti string) (uint64, error)
	RevokeRefreshFunc   func(ctx context.Context, jti string) error
	BlockFunc           func(ctx context.Context, userID uint64, jti, reason string) error
}

func (f *fakeTokens) StoreRefresh(ctx context.Context, userID uint64, jti string, exp time.Time) error {
	if f.StoreRefreshFunc == nil {
		return nil
	}
	return f.StoreRefreshFunc(ctx, userID, jti, exp)
}

func (f *fakeTokens) ValidateRefresh(ctx context.Context, jti string) (uint64, error) {
	return f.ValidateRefreshFunc(ctx, jti)
}

func (f *fakeTokens) RevokeRefresh(ctx context.Context, jti string) error {
	if f.RevokeRefreshFunc == nil {
		return nil
	}
	return f.RevokeRefreshFunc(ctx, jti)
}

func (f *fakeTokens) Block(ctx context.Context, userID uint64, jti, reason string) error {
	return f.BlockFunc(ctx, userID, jti, reason)
}

type fakeRedeemer struct {
	RedeemFunc func(ctx context.Context, account model.Account, code string) (model.UsedCard, error)
}

func (f *fakeRedeemer) Redeem(ctx context.Context, account model.Account, code string) (model.UsedCard, error) {
	return f.RedeemFunc(ctx, account, code)
}

type fakeLedger struct {
	HistoryFunc func(ctx context.Context, userID uint64, limit int) ([]model.UsedCard, error)
}

func (f *fakeLedger) History(ctx context.Context, userID uint64, limit int) ([]model.UsedCard, error) {
	return f.HistoryFunc(ctx, userID, limit)
}

type fakeRevoker struct {
	RevokeAllForUserFunc func(ctx context.Context, userID uint64) error
}

func (f *fakeRevoker) RevokeAllForUser(ctx context.Context, userID uint64) error {
	if f.RevokeAllForUserFunc == nil {
		return nil
	}
	return f.RevokeAllForUserFunc(ctx, userID)
}

type fakeAdminStore struct {
	GetByUUIDFunc func(ctx context.Context, id string) (model.Account, error)
	SetStateFunc  func(ctx context.Context, uuid string, activated bool) error
	DeleteFunc    func(ctx context.Context, uuid string) error
	GetStatsFunc  func(ctx context.Context) (repository.Stats, error)
}

func (f *fakeAdminStore) GetByUUID(ctx context.Context, id string) (model.Account, error) {
	return f.GetByUUIDFunc(ctx, id)
}

func (f *fakeAdminStore) SetState(ctx context.Context, uuid string, activated bool) error {
	return f.SetStateFunc(ctx, uuid, activated)
}

func (f *fakeAdminStore) Delete(ctx context.Context, uuid string) error {
	return f.DeleteFunc(ctx, uuid)
}

func (f *fakeAdminStore) GetStats(ctx context.Context) (repository.Stats, error) {
	return f.GetStatsFunc(ctx)
}

// newJSONContext builds an echo context around a JSON request.
func newJSONContext(t *testing.T, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
