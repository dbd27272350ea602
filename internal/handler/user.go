package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkravets/isp-cabinet/internal/middleware"
	"github.com/mkravets/isp-cabinet/internal/model"
	"github.com/mkravets/isp-cabinet/internal/repository"
)

// Redeemer executes the card redemption transaction on behalf of the
// acting account. Implemented by service.RedemptionService.
type Redeemer interface {
	Redeem(ctx context.Context, account model.Account, code string) (model.UsedCard, error)
}

// HistoryReader lists an account's redemption records.
// Implemented by repository.CardRepo.
type HistoryReader interface {
	History(ctx context.Context, userID uint64, limit int) ([]model.UsedCard, error)
}

// UserLister extends AccountStore with the admin listing.
type UserLister interface {
	AccountStore
	ListAll(ctx context.Context) ([]model.Account, error)
}

// UserHandler serves the account resources under /api/v1/users.
type UserHandler struct {
	Accounts UserLister
	Redeem   Redeemer
	Ledger   HistoryReader
}

func NewUserHandler(accounts UserLister, redeemer Redeemer, ledger HistoryReader) *UserHandler {
	return &UserHandler{Accounts: accounts, Redeem: redeemer, Ledger: ledger}
}

// principal resolves the authenticated account from the token claims.
func (h *UserHandler) principal(c echo.Context) (model.Account, error) {
	subject, _ := c.Get(middleware.CtxUserUUID).(string)
	if subject == "" {
		return model.Account{}, errors.New("missing principal")
	}
	return h.Accounts.GetByUUID(c.Request().Context(), subject)
}

// List handles GET /api/v1/users. Admins receive every account in the
// reduced admin view; customers receive their own full profile.
func (h *UserHandler) List(c echo.Context) error {
	curr, err := h.principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	if curr.IsAdmin() {
		accounts, err := h.Accounts.ListAll(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
		}
		return c.JSON(http.StatusOK, newAdminUserViews(accounts))
	}
	return c.JSON(http.StatusOK, newFullUserView(curr))
}

// Detail handles GET /api/v1/users/:uuid. Self gets the full profile,
// admin the reduced view; anyone else is rejected with 403.
func (h *UserHandler) Detail(c echo.Context) error {
	curr, err := h.principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	target := c.Param("uuid")
	if !curr.IsAdmin() && curr.UUID != target {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "Access denied."})
	}
	if curr.UUID == target {
		return c.JSON(http.StatusOK, newFullUserView(curr))
	}

	a, err := h.Accounts.GetByUUID(c.Request().Context(), target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	return c.JSON(http.StatusOK, newAdminUserView(a))
}

type redeemReq struct {
	Code string `json:"code"`
}

// RedeemCard handles POST /api/v1/users/:uuid. Self-service only: even an
// admin cannot top up someone else's balance.
func (h *UserHandler) RedeemCard(c echo.Context) error {
	curr, err := h.principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	if curr.UUID != c.Param("uuid") {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "Access denied."})
	}

	var req redeemReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"errors": map[string]string{"code": "required"}})
	}

	used, err := h.Redeem.Redeem(c.Request().Context(), curr, strings.TrimSpace(req.Code))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "Wrong code."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "redemption failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "The card was successfully used.",
		"balance": used.BalanceAfterUse,
		"amount":  used.Amount,
	})
}

// History handles GET /api/v1/users/:uuid/history: the last redemptions of
// the target account, newest first. Self or admin only.
func (h *UserHandler) History(c echo.Context) error {
	curr, err := h.principal(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	target := c.Param("uuid")
	if !curr.IsAdmin() && curr.UUID != target {
		return c.JSON(http.StatusForbidden, echo.Map{"message": "Access denied."})
	}

	a := curr
	if curr.UUID != target {
		a, err = h.Accounts.GetByUUID(c.Request().Context(), target)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"message": "User not found."})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
		}
	}

	history, err := h.Ledger.History(c.Request().Context(), a.ID, 10)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "query failed"})
	}
	return c.JSON(http.StatusOK, newUsedCardViews(history))
}
