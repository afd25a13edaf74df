// Package models holds the attestation verification entities. Each request
// walks Requested -> Attested -> Verified|Rejected; the terminal states mark
// the request processed and verification is never re-evaluated.
package models

import (
	"crypto/ed25519"
	"time"

	id "scorepass/pkg/domain"
)

// Status of an attestation request.
type Status string

const (
	StatusRequested Status = "requested"
	StatusAttested  Status = "attested"
	StatusVerified  Status = "verified"
	StatusRejected  Status = "rejected"
)

// Processed reports whether the request reached a terminal state.
func (s Status) Processed() bool {
	return s == StatusVerified || s == StatusRejected
}

// Request tracks one data commitment awaiting attestation.
type Request struct {
	ID          id.RequestID  `json:"id"`
	Commitment  id.Commitment `json:"commitment"`
	Requester   id.Principal  `json:"requester"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// Attestation is a validator's signed claim over a request. At most one is
// retained per request; a later submission from a whitelisted validator
// overwrites an earlier one.
type Attestation struct {
	RequestID  id.RequestID  `json:"request_id"`
	Commitment id.Commitment `json:"commitment"`
	Validator  id.Principal  `json:"validator"`
	Signature  []byte        `json:"signature"`
	SignedAt   time.Time     `json:"signed_at"`
}

// Validator is a whitelist entry. Enabled is re-checked at verification time,
// not just at submission, so disabling a validator retroactively invalidates
// its pending attestations.
type Validator struct {
	Principal id.Principal      `json:"principal"`
	PublicKey ed25519.PublicKey `json:"public_key"`
	Enabled   bool              `json:"enabled"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SubmitRequestPayload is the transport payload for attestation requests.
type SubmitRequestPayload struct {
	Commitment string `json:"commitment"`
}

// SubmitAttestationPayload is the transport payload for attestations.
type SubmitAttestationPayload struct {
	RequestID  string    `json:"request_id"`
	Commitment string    `json:"commitment"`
	Signature  string    `json:"signature"`
	SignedAt   time.Time `json:"signed_at"`
}

// SetValidatorPayload is the admin payload for whitelist updates.
type SetValidatorPayload struct {
	Principal string `json:"principal"`
	PublicKey string `json:"public_key"`
	Enabled   bool   `json:"enabled"`
}

// SetWindowPayload is the admin payload for validity window updates.
type SetWindowPayload struct {
	MinDelay string `json:"min_delay"`
	MaxAge   string `json:"max_age"`
}
