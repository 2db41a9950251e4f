package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synk/synk-server-go/internal/database"
	"github.com/synk/synk-server-go/internal/model"
)

type AccountRepository interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error)
	UpdateProfile(ctx context.Context, id string, params model.UpdateProfileParams) (*model.Account, error)
	Delete(ctx context.Context, id string) error
}

type accountRepo struct {
	db database.Queryer
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE id = $1
	`, id)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		SELECT * FROM accounts WHERE email = $1
	`, email)
	return HandleNotFound(&account, err)
}

func (r *accountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (id, email, username, first_name, last_name, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, uuid.NewString(), params.Email, params.Username, params.FirstName, params.LastName, params.PasswordHash)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateAccount
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *accountRepo) UpdateProfile(ctx context.Context, id string, params model.UpdateProfileParams) (*model.Account, error) {
	var account model.Account
	err := r.db.GetContext(ctx, &account, `
		UPDATE accounts SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, id, params.FirstName, params.LastName)
	return HandleNotFound(&account, err)
}

// Delete removes the account; pairs, memberships and codes cascade.
func (r *accountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}
