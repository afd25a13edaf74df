// Package models holds the financial passport entities. A credential is
// soulbound: nothing in this package or its consumers can change the subject
// after minting, and there is no transfer or approval operation to call.
package models

import (
	"time"

	id "scorepass/pkg/domain"
)

// Credential is a non-transferable record binding a subject to a commitment
// over their encrypted score. Revocation flips Active; records are never
// deleted, so the issuance trail is append-only.
type Credential struct {
	ID              id.CredentialID `json:"id"`
	Subject         id.IdentityID   `json:"subject"`
	ScoreCommitment id.Commitment   `json:"score_commitment"`
	IssuedAt        time.Time       `json:"issued_at"`
	ValidUntil      time.Time       `json:"valid_until"`
	MetadataPointer string          `json:"metadata_pointer"`
	Active          bool            `json:"active"`
	RevokedAt       *time.Time      `json:"revoked_at,omitempty"`
	RenewedAt       *time.Time      `json:"renewed_at,omitempty"`
}

// IsValid reports whether the credential is active and unexpired at the
// given instant.
func (c *Credential) IsValid(now time.Time) bool {
	return c.Active && now.Before(c.ValidUntil)
}

// IssuePayload is the transport payload for credential issuance.
type IssuePayload struct {
	Subject         string    `json:"subject"`
	ScoreCommitment string    `json:"score_commitment"`
	ValidUntil      time.Time `json:"valid_until"`
	MetadataPointer string    `json:"metadata_pointer"`
}

// RenewPayload is the transport payload for credential renewal.
type RenewPayload struct {
	ScoreCommitment string    `json:"score_commitment"`
	ValidUntil      time.Time `json:"valid_until"`
	MetadataPointer string    `json:"metadata_pointer"`
}
