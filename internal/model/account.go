package model

import (
	"time"
)

type Account struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Username     string    `db:"username" json:"username"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// AccountSummary is the public view of an account shown to its partner.
type AccountSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
	}
}

type CreateAccountParams struct {
	Email        string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
}

type UpdateProfileParams struct {
	FirstName *string
	LastName  *string
}
