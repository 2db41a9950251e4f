package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/synk/synk-server-go/internal/errors"
	"github.com/synk/synk-server-go/internal/util"
)

type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService issues and verifies HS256 access tokens whose subject is the account id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(accountID string) (*AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, apperrors.Internal("failed to sign token").WithCause(err)
	}

	return &AccessToken{
		Token:     signed,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	}, nil
}

// Verify returns the account id carried by a valid token.
func (s *TokenService) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return "", apperrors.InvalidToken("Invalid or expired token").WithCause(err)
	}

	if !util.IsValidUUID(claims.Subject) {
		return "", apperrors.InvalidToken("Invalid token subject")
	}
	return claims.Subject, nil
}
