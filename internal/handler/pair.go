package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/synk/synk-server-go/internal/middleware"
	"github.com/synk/synk-server-go/internal/model"
	"github.com/synk/synk-server-go/internal/service"
)

type PairHandler struct {
	pairing *service.PairingService
}

func NewPairHandler(pairing *service.PairingService) *PairHandler {
	return &PairHandler{pairing: pairing}
}

// Routes expects middleware.Require to be mounted in front.
func (h *PairHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Status)
	r.Delete("/", h.Unpair)
	r.Post("/codes", h.IssueCode)
	r.Get("/codes", h.ListCodes)
	r.Post("/codes/redeem", h.Redeem)

	return r
}

type codeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toCodeResponse(pc *model.PairingCode) codeResponse {
	return codeResponse{
		Code:      pc.Code,
		ExpiresAt: pc.ExpiresAt,
		CreatedAt: pc.CreatedAt,
	}
}

// POST /api/pair/codes
func (h *PairHandler) IssueCode(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	pc, err := h.pairing.IssueCode(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCodeResponse(pc))
}

// GET /api/pair/codes
func (h *PairHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	codes, err := h.pairing.ListActiveCodes(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]codeResponse, 0, len(codes))
	for i := range codes {
		out = append(out, toCodeResponse(&codes[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/pair/codes/redeem
func (h *PairHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.pairing.Redeem(r.Context(), req.Code, account.ID); err != nil {
		writeError(w, err)
		return
	}

	status, err := h.pairing.Status(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

// GET /api/pair
func (h *PairHandler) Status(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	status, err := h.pairing.Status(r.Context(), account.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// DELETE /api/pair
func (h *PairHandler) Unpair(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())

	if err := h.pairing.Unpair(r.Context(), account.ID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Successfully uncoupled",
	})
}
