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
	"github.com/mkravets/isp-cabinet/internal/session"
	"github.com/mkravets/isp-cabinet/internal/utils"
)

// WebStore is the account surface the web cabinet needs on top of the
// listing interface. Moderation goes through the AdminHandler so both
// surfaces share one code path.
type WebStore interface {
	UserLister
	SearchByUsername(ctx context.Context, q string) ([]model.Account, error)
	GetStats(ctx context.Context) (repository.Stats, error)
}

// WebHandler serves the session-based surface: login form endpoint,
// cabinet and admin dashboard. Rendering is left to the front end; the
// handlers speak JSON and redirects, and failures come back as
// flash-style notices in the payload.
type WebHandler struct {
	Accounts   AccountStore
	Store      WebStore
	Sessions   *session.Store
	Redeem     Redeemer
	Ledger     HistoryReader
	Admin      *AdminHandler
	BcryptCost int
}

func NewWebHandler(store WebStore, sessions *session.Store, redeemer Redeemer, ledger HistoryReader, admin *AdminHandler, bcryptCost int) *WebHandler {
	return &WebHandler{
		Accounts:   store,
		Store:      store,
		Sessions:   sessions,
		Redeem:     redeemer,
		Ledger:     ledger,
		Admin:      admin,
		BcryptCost: bcryptCost,
	}
}

// LoginPage handles GET /. A browser with a live session is sent straight
// to its cabinet.
func (h *WebHandler) LoginPage(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		if sess, err := h.Sessions.Get(c.Request().Context(), cookie.Value); err == nil {
			if sess.Role == model.RoleAdmin {
				return c.Redirect(http.StatusSeeOther, "/admin/")
			}
			return c.Redirect(http.StatusSeeOther, "/cabinet")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Sign in to your cabinet."})
}

// Login handles POST /: verifies the submitted form credentials, starts a
// session and redirects admins to the dashboard, customers to the cabinet.
func (h *WebHandler) Login(c echo.Context) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")
	if username == "" || password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"notice": "Username and password are required."})
	}

	ctx := c.Request().Context()
	a, err := h.Accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"notice": "Unable to login."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"notice": "Unable to login."})
	}

	sess, err := h.Sessions.Create(ctx, a.UUID, a.Username, a.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int(h.Sessions.TTL().Seconds()),
	})
	if a.IsAdmin() {
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	return c.Redirect(http.StatusSeeOther, "/cabinet")
}

// Logout handles GET /logout: terminates the session and clears the cookie.
func (h *WebHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.SessionCookie); err == nil && cookie.Value != "" {
		_ = h.Sessions.Delete(c.Request().Context(), cookie.Value)
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return c.Redirect(http.StatusSeeOther, "/")
}

func webSession(c echo.Context) (session.Session, bool) {
	sess, ok := c.Get(middleware.CtxSession).(session.Session)
	return sess, ok
}

// Cabinet handles GET /cabinet: the account's full profile plus its
// recent redemption history.
func (h *WebHandler) Cabinet(c echo.Context) error {
	sess, ok := webSession(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	ctx := c.Request().Context()
	a, err := h.Accounts.GetByUUID(ctx, sess.UserUUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	history, err := h.Ledger.History(ctx, a.ID, 10)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":    newFullUserView(a),
		"history": newUsedCardViews(history),
	})
}

// RedeemCard handles POST /cabinet: the redeem form of the cabinet page.
func (h *WebHandler) RedeemCard(c echo.Context) error {
	sess, ok := webSession(c)
	if !ok {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	code := strings.TrimSpace(c.FormValue("code"))
	if code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"notice": "Card code is required."})
	}

	ctx := c.Request().Context()
	a, err := h.Accounts.GetByUUID(ctx, sess.UserUUID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	used, err := h.Redeem.Redeem(ctx, a, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"notice": "Wrong code."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"notice":  "The card was successfully used.",
		"balance": used.BalanceAfterUse,
	})
}

// Dashboard handles GET /admin/: every account (optionally filtered by
// ?q= username search) plus aggregate statistics.
func (h *WebHandler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		accounts []model.Account
		err      error
	)
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		accounts, err = h.Store.SearchByUsername(ctx, q)
	} else {
		accounts, err = h.Store.ListAll(ctx)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	stats, err := h.Store.GetStats(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users": newAdminUserViews(accounts),
		"stats": stats,
	})
}

// Moderate handles POST /admin/users/:uuid: the dashboard's activate /
// deactivate / delete form, sharing the API handler's semantics.
func (h *WebHandler) Moderate(c echo.Context) error {
	choice := c.FormValue("choice")
	if choice != "activate" && choice != "deactivate" && choice != "delete" {
		return c.JSON(http.StatusBadRequest, echo.Map{"notice": "Unknown choice."})
	}

	ctx := c.Request().Context()
	target, err := h.Store.GetByUUID(ctx, c.Param("uuid"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"notice": "User not found."})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Something went wrong."})
	}

	if err := h.Admin.apply(ctx, target, choice); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Failure."})
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

// RegisterAccount handles POST /admin/register: the dashboard's
// registration form.
func (h *WebHandler) RegisterAccount(c echo.Context) error {
	req := registerReq{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Phone:    c.FormValue("phone"),
		Address:  c.FormValue("address"),
		Tariff:   c.FormValue("tariff"),
	}
	if errs := validateRegister(req); len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"notice": "Invalid registration data.", "errors": errs})
	}

	a := model.Account{
		Username: req.Username,
		Role:     model.RoleCustomer,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Tariff:   req.Tariff,
	}
	err := h.Accounts.Create(c.Request().Context(), &a, req.Password, h.BcryptCost)
	switch {
	case err == nil:
		return c.Redirect(http.StatusSeeOther, "/admin/")
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusBadRequest, echo.Map{"notice": "This user already exists."})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"notice": "Failure. Unable to save."})
	}
}
