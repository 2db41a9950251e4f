package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/synk/synk-server-go/internal/audit"
	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/httputil"
	"github.com/synk/synk-server-go/internal/model"
)

type contextKey string

const AccountContextKey contextKey = "account"

func GetAccount(ctx context.Context) *model.Account {
	if account, ok := ctx.Value(AccountContextKey).(*model.Account); ok {
		return account
	}
	return nil
}

// WithAccount returns a copy of ctx carrying account.
func WithAccount(ctx context.Context, account *model.Account) context.Context {
	return context.WithValue(ctx, AccountContextKey, account)
}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
}

type AuthMiddleware struct {
	tokens   TokenVerifier
	accounts AccountFinder
}

func NewAuthMiddleware(tokens TokenVerifier, accounts AccountFinder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// Handler attaches the authenticated account when a token is presented.
// Requests without a token pass through anonymously; a bad token is rejected.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		accountID, err := m.tokens.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			httputil.WriteError(w, err)
			return
		}

		account, err := m.accounts.FindByID(r.Context(), accountID)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			httputil.WriteError(w, apperrors.Database(err))
			return
		}
		if account == nil {
			log.Warn().Str("accountId", accountID).Msg("auth middleware: token for unknown account")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure, AccountID: accountID})
			httputil.WriteError(w, apperrors.InvalidToken("Invalid or expired token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
	})
}

// Require rejects requests that Handler did not authenticate.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAccount(r.Context()) == nil {
			httputil.WriteError(w, apperrors.Unauthorized("Authentication credentials were not provided"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
