package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/model"
)

type mockTokenVerifier struct {
	verifyFunc func(token string) (string, error)
}

func (m *mockTokenVerifier) Verify(token string) (string, error) {
	return m.verifyFunc(token)
}

type mockAccountFinder struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Account, error)
}

func (m *mockAccountFinder) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, nil
}

func newTestAuth(accounts map[string]*model.Account) *AuthMiddleware {
	tokens := &mockTokenVerifier{verifyFunc: func(token string) (string, error) {
		if token == "good" {
			return "acc-1", nil
		}
		if token == "orphan" {
			return "acc-gone", nil
		}
		return "", apperrors.InvalidToken("Invalid or expired token")
	}}
	finder := &mockAccountFinder{findByIDFunc: func(ctx context.Context, id string) (*model.Account, error) {
		return accounts[id], nil
	}}
	return NewAuthMiddleware(tokens, finder)
}

func TestAuthMiddleware(t *testing.T) {
	account := &model.Account{ID: "acc-1", Email: "a@example.com"}
	auth := newTestAuth(map[string]*model.Account{"acc-1": account})

	var seen *model.Account
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAccount(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Handler(next)

	t.Run("passes anonymous requests through", func(t *testing.T) {
		seen = &model.Account{}
		rec := serve(handler, httptest.NewRequest("GET", "/api/pair", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("attaches account from bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/pair", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "acc-1", seen.ID)
	})

	t.Run("accepts token query parameter", func(t *testing.T) {
		seen = nil
		rec := serve(handler, httptest.NewRequest("GET", "/ws?token=good", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "acc-1", seen.ID)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/pair", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
	})

	t.Run("rejects token for deleted account", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/pair", nil)
		req.Header.Set("Authorization", "Bearer orphan")
		rec := serve(handler, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns 500 on lookup failure", func(t *testing.T) {
		tokens := &mockTokenVerifier{verifyFunc: func(string) (string, error) { return "acc-1", nil }}
		finder := &mockAccountFinder{findByIDFunc: func(context.Context, string) (*model.Account, error) {
			return nil, errors.New("db down")
		}}
		h := NewAuthMiddleware(tokens, finder).Handler(next)

		req := httptest.NewRequest("GET", "/api/pair", nil)
		req.Header.Set("Authorization", "Bearer x")
		rec := serve(h, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "db down")
	})
}

func TestRequire(t *testing.T) {
	handler := Require(okHandler())

	t.Run("rejects anonymous", func(t *testing.T) {
		rec := serve(handler, httptest.NewRequest("GET", "/api/pair", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
	})

	t.Run("allows authenticated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/pair", nil)
		req = req.WithContext(WithAccount(req.Context(), &model.Account{ID: "acc-1"}))
		assert.Equal(t, http.StatusOK, serve(handler, req).Code)
	})
}

func TestBodyLimitMiddleware(t *testing.T) {
	handler := NewBodyLimitMiddleware(8).Handler(okHandler())

	req := httptest.NewRequest("POST", "/api/register", nil)
	req.ContentLength = 100
	req.Body = http.NoBody
	rec := serve(handler, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "REQUEST_TOO_LARGE")
}
