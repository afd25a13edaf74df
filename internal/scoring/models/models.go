// Package models holds the scoring engine entities. CreditFeatures are
// ephemeral: derived, consumed, and discarded within one scoring call, never
// persisted independently of the request.
package models

import (
	"time"

	"scorepass/pkg/enc"
)

// CreditFeatures is the fixed set of encrypted numeric features the model
// evaluates. All values live in the encrypted domain end to end.
type CreditFeatures struct {
	Income      enc.Cipher // monthly income
	Debt        enc.Cipher // total outstanding debt
	DTI         enc.Cipher // debt-to-income ratio, percent
	Utilization enc.Cipher // credit utilization, percent
	History     enc.Cipher // payment history score, 300-850
	AgeMonths   enc.Cipher // oldest account age in months
	Inquiries   enc.Cipher // hard inquiries in the last year
	Employment  enc.Cipher // employment stability in months
}

// ModelParameters is the single administrative configuration aggregate the
// engine reads on every computation. The encrypted fields are opaque even to
// the operator once set.
type ModelParameters struct {
	BaseScore      enc.Cipher
	RiskMultiplier enc.Cipher // percent; 100 leaves the score unchanged
	CreditCeiling  enc.Cipher
	Active         bool
	UpdatedAt      time.Time
}

// ParametersInfo is the admin-facing view of the model configuration. The
// encrypted values themselves are never exposed.
type ParametersInfo struct {
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetParametersPayload is the admin payload for model parameter updates.
// Values are plaintext at the trust boundary and encrypted on receipt.
type SetParametersPayload struct {
	BaseScore      uint64 `json:"base_score"`
	RiskMultiplier uint64 `json:"risk_multiplier"`
	CreditCeiling  uint64 `json:"credit_ceiling"`
}

// SetActivePayload is the admin payload for toggling the model.
type SetActivePayload struct {
	Active bool `json:"active"`
}
