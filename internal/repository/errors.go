package repository

import "errors"

var (
	// ErrCodeNotRedeemable means no unredeemed, unexpired code with that value
	// was issued by someone other than the redeemer.
	ErrCodeNotRedeemable = errors.New("pairing code not redeemable")

	// ErrAlreadyPaired means the redeemer gained a pair first.
	ErrAlreadyPaired = errors.New("account already paired")

	// ErrIssuerPaired means the code's issuer paired with someone else after
	// issuing it, so the code can no longer be used.
	ErrIssuerPaired = errors.New("code issuer already paired")

	// ErrCodeTaken means another unredeemed code holds the same value.
	ErrCodeTaken = errors.New("pairing code value taken")

	ErrDuplicateAccount = errors.New("account already exists")
)
