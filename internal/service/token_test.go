package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/synk/synk-server-go/internal/errors"
)

func TestTokenService(t *testing.T) {
	const secret = "test-secret-that-is-long-enough-32"
	accountID := uuid.NewString()

	t.Run("issued token verifies to the account id", func(t *testing.T) {
		svc := NewTokenService(secret, time.Hour)

		token, err := svc.Issue(accountID)
		require.NoError(t, err)
		assert.Equal(t, "Bearer", token.TokenType)

		subject, err := svc.Verify(token.Token)
		require.NoError(t, err)
		assert.Equal(t, accountID, subject)
	})

	t.Run("rejects expired token", func(t *testing.T) {
		svc := NewTokenService(secret, time.Minute)
		issuedAt := time.Now()
		svc.now = func() time.Time { return issuedAt }

		token, err := svc.Issue(accountID)
		require.NoError(t, err)

		svc.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
		_, err = svc.Verify(token.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		other := NewTokenService("another-secret-that-is-long-enough", time.Hour)
		token, err := other.Issue(accountID)
		require.NoError(t, err)

		_, err = NewTokenService(secret, time.Hour).Verify(token.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("rejects none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = NewTokenService(secret, time.Hour).Verify(raw)
		assert.Error(t, err)
	})

	t.Run("rejects non uuid subject", func(t *testing.T) {
		svc := NewTokenService(secret, time.Hour)
		token, err := svc.Issue("not-a-uuid")
		require.NoError(t, err)

		_, err = svc.Verify(token.Token)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidToken))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := NewTokenService(secret, time.Hour).Verify("abc.def.ghi")
		assert.Error(t, err)
	})
}
