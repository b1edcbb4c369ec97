package models

import "time"

// IdentityKind selects which signer column an identity is keyed by.
type IdentityKind string

const (
	IdentityPersonhood IdentityKind = "personhood"
	IdentityWallet     IdentityKind = "wallet"
)

// Signer is an identity record. Either identifier may be empty; a signer is
// looked up by whichever one the caller presents.
type Signer struct {
	ID            string
	PersonhoodID  string
	WalletAddress string
	CreatedAt     time.Time
}
