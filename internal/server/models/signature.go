package models

import "time"

// Signature joins a signer to a document. A signer signs a document at most once.
type Signature struct {
	ID         string
	DocumentID string
	SignerID   string
	// Position is the zero-based acceptance order within the document.
	Position            int
	AttestationRecordID string
	AttestationToken    string
	SignedAt            time.Time
}
