package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/synk/synk-server-go/internal/database"
	"github.com/synk/synk-server-go/internal/model"
)

type PairingCodeRepository interface {
	FindValidByCode(ctx context.Context, code string, now time.Time) (*model.PairingCode, error)
	// FindLatestByCode returns the most recently issued row for code, valid or not.
	FindLatestByCode(ctx context.Context, code string) (*model.PairingCode, error)
	FindValidByIssuer(ctx context.Context, issuerID string, now time.Time) ([]model.PairingCode, error)
	Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error)
	// RevokeByIssuer deletes the issuer's unredeemed codes.
	RevokeByIssuer(ctx context.Context, issuerID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type pairingCodeRepo struct {
	db database.Queryer
}

func NewPairingCodeRepository(db *sqlx.DB) PairingCodeRepository {
	return &pairingCodeRepo{db: db}
}

func (r *pairingCodeRepo) FindValidByCode(ctx context.Context, code string, now time.Time) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes
		WHERE code = $1 AND redeemed_by IS NULL AND expires_at > $2
	`, code, now)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) FindLatestByCode(ctx context.Context, code string) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		SELECT * FROM pairing_codes
		WHERE code = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, code)
	return HandleNotFound(&pc, err)
}

func (r *pairingCodeRepo) FindValidByIssuer(ctx context.Context, issuerID string, now time.Time) ([]model.PairingCode, error) {
	codes := []model.PairingCode{}
	err := r.db.SelectContext(ctx, &codes, `
		SELECT * FROM pairing_codes
		WHERE issuer_id = $1 AND redeemed_by IS NULL AND expires_at > $2
		ORDER BY created_at DESC
	`, issuerID, now)
	return codes, err
}

func (r *pairingCodeRepo) Create(ctx context.Context, params model.CreatePairingCodeParams) (*model.PairingCode, error) {
	var pc model.PairingCode
	err := r.db.GetContext(ctx, &pc, `
		INSERT INTO pairing_codes (code, issuer_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.Code, params.IssuerID, params.ExpiresAt)
	if isUniqueViolation(err) {
		return nil, ErrCodeTaken
	}
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

func (r *pairingCodeRepo) RevokeByIssuer(ctx context.Context, issuerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE issuer_id = $1 AND redeemed_by IS NULL
	`, issuerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *pairingCodeRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_codes
		WHERE expires_at <= NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
