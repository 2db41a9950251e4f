package model

import (
	"time"
)

type PairingCode struct {
	ID         int64      `db:"id" json:"-"`
	Code       string     `db:"code" json:"code"`
	IssuerID   string     `db:"issuer_id" json:"issuer_id"`
	RedeemedBy *string    `db:"redeemed_by" json:"redeemed_by,omitempty"`
	RedeemedAt *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// IsValid reports whether the code can still be redeemed at now.
// A code expiring exactly at now is already expired.
func (c *PairingCode) IsValid(now time.Time) bool {
	return c.RedeemedBy == nil && c.ExpiresAt.After(now)
}

type CreatePairingCodeParams struct {
	Code      string
	IssuerID  string
	ExpiresAt time.Time
}

// Pair links two accounts. AccountAID issued the code, AccountBID redeemed it.
type Pair struct {
	ID         string    `db:"id" json:"id"`
	AccountAID string    `db:"account_a_id" json:"account_a_id"`
	AccountBID string    `db:"account_b_id" json:"account_b_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (p *Pair) Has(accountID string) bool {
	return p.AccountAID == accountID || p.AccountBID == accountID
}

// PartnerOf returns the member of the pair that is not accountID.
func (p *Pair) PartnerOf(accountID string) (string, bool) {
	switch accountID {
	case p.AccountAID:
		return p.AccountBID, true
	case p.AccountBID:
		return p.AccountAID, true
	default:
		return "", false
	}
}

func (p *Pair) Members() []string {
	return []string{p.AccountAID, p.AccountBID}
}

type RedeemCodeParams struct {
	Code       string
	RedeemerID string
	Now        time.Time
}
