// Package models holds the identity registry entities. An identity maps one
// principal to at most one record; authorization is a relation between an
// identity and a requester principal, kept in a separate table rather than
// nested inside the identity.
package models

import (
	"time"

	id "scorepass/pkg/domain"
)

// Identity is a registered participant. Verification is a one-way flag set by
// an administrator; identities are never deleted.
type Identity struct {
	ID         id.IdentityID `json:"id"`
	Principal  id.Principal  `json:"principal"`
	ExternalID string        `json:"external_id"`
	Verified   bool          `json:"verified"`
	VerifiedAt *time.Time    `json:"verified_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Authorization grants one requester principal the right to initiate credit
// score requests for the identity. Timestamps are kept for audit.
type Authorization struct {
	IdentityID id.IdentityID `json:"identity_id"`
	Requester  id.Principal  `json:"requester"`
	GrantedAt  time.Time     `json:"granted_at"`
}

// RegisterRequest is the transport payload for identity registration.
type RegisterRequest struct {
	Principal  string `json:"principal"`
	ExternalID string `json:"external_id"`
}

// AuthorizeRequest is the transport payload for authorization grants/revokes.
type AuthorizeRequest struct {
	Requester string `json:"requester"`
}
