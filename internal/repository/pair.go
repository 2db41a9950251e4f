package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synk/synk-server-go/internal/database"
	"github.com/synk/synk-server-go/internal/model"
)

type PairRepository interface {
	FindByAccountID(ctx context.Context, accountID string) (*model.Pair, error)
	// CreateFromCode redeems the code and creates the pair in one transaction.
	// It returns ErrCodeNotRedeemable, ErrAlreadyPaired or ErrIssuerPaired and
	// leaves no trace on failure.
	CreateFromCode(ctx context.Context, params model.RedeemCodeParams) (*model.Pair, error)
	// DeleteByAccountID removes the account's pair and returns it, or nil if there was none.
	DeleteByAccountID(ctx context.Context, accountID string) (*model.Pair, error)
}

type pairRepo struct {
	db *database.DB
}

func NewPairRepository(db *database.DB) PairRepository {
	return &pairRepo{db: db}
}

func (r *pairRepo) FindByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	var pair model.Pair
	err := r.db.GetContext(ctx, &pair, `
		SELECT p.* FROM pairs p
		JOIN pair_members m ON m.pair_id = p.id
		WHERE m.account_id = $1
	`, accountID)
	return HandleNotFound(&pair, err)
}

func (r *pairRepo) CreateFromCode(ctx context.Context, params model.RedeemCodeParams) (*model.Pair, error) {
	var pair model.Pair

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// Compare-and-swap on redeemed_by: concurrent redeemers of the same
		// row serialize on the row lock and all but one match zero rows.
		var pc model.PairingCode
		err := tx.GetContext(ctx, &pc, `
			UPDATE pairing_codes SET
				redeemed_by = $2,
				redeemed_at = $3
			WHERE code = $1
				AND redeemed_by IS NULL
				AND expires_at > $3
				AND issuer_id <> $2
			RETURNING *
		`, params.Code, params.RedeemerID, params.Now)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCodeNotRedeemable
		}
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &pair, `
			INSERT INTO pairs (id, account_a_id, account_b_id, created_at)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		`, uuid.NewString(), pc.IssuerID, params.RedeemerID, params.Now)
		if err != nil {
			return err
		}

		// Redeemer first: when both sides conflict the redeemer's own pair is
		// the one worth reporting.
		if err := insertMember(ctx, tx, pair.AccountBID, pair.ID); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyPaired
			}
			return err
		}
		if err := insertMember(ctx, tx, pair.AccountAID, pair.ID); err != nil {
			if isUniqueViolation(err) {
				return ErrIssuerPaired
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pair, nil
}

func insertMember(ctx context.Context, tx *sqlx.Tx, accountID, pairID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO pair_members (account_id, pair_id) VALUES ($1, $2)`,
		accountID, pairID)
	return err
}

func (r *pairRepo) DeleteByAccountID(ctx context.Context, accountID string) (*model.Pair, error) {
	var pair model.Pair
	err := r.db.GetContext(ctx, &pair, `
		DELETE FROM pairs
		WHERE id = (SELECT pair_id FROM pair_members WHERE account_id = $1)
		RETURNING *
	`, accountID)
	return HandleNotFound(&pair, err)
}
