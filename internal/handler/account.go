package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/synk/synk-server-go/internal/audit"
	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/middleware"
	"github.com/synk/synk-server-go/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// UserRoutes are the authenticated /api/users endpoints.
func (h *AccountHandler) UserRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/me", h.Me)
	r.Put("/me", h.UpdateMe)
	r.Post("/delete_account", h.DeleteAccount)

	return r
}

// POST /api/register
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"account": result.Account.Summary(),
		"paired":  result.Paired,
	})
}

// POST /api/auth/token
func (h *AccountHandler) Token(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	account, token, err := h.accounts.Authenticate(r.Context(), input)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidCredentials) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		}
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, AccountID: account.ID})
	writeJSON(w, http.StatusOK, token)
}

// GET /api/users/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	profile, err := h.accounts.Profile(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PUT /api/users/me
func (h *AccountHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	var input service.UpdateProfileInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.accounts.UpdateProfile(r.Context(), account.ID, input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// POST /api/users/delete_account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), account.ID, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Account deleted successfully",
	})
}
