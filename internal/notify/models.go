// Package notify records one durable, ordered notification per committed
// state transition. External observers (cross-chain listeners, dashboards)
// consume these from the Kafka topic; the core only guarantees that every
// committed transition appends exactly one record and that the outbox worker
// publishes each record exactly once.
package notify

import "time"

// Operation names for notification records. One constant per state-changing
// operation in the external interface.
const (
	OpIdentityRegistered   = "identity.registered"
	OpIdentityVerified     = "identity.verified"
	OpIdentityAuthorized   = "identity.authorized"
	OpIdentityRevoked      = "identity.revoked"
	OpRequestInitiated     = "request.initiated"
	OpRequestAttested      = "request.attestation_processed"
	OpRequestScoring       = "request.scoring_started"
	OpRequestCompleted     = "request.completed"
	OpRequestFailed        = "request.failed"
	OpAttestationRequested = "attestation.requested"
	OpAttestationSubmit    = "attestation.submitted"
	OpAttestationVerified  = "attestation.verified"
	OpAttestationRejected  = "attestation.rejected"
	OpValidatorUpdated     = "attestation.validator_updated"
	OpWindowUpdated        = "attestation.window_updated"
	OpModelUpdated         = "scoring.parameters_updated"
	OpModelActivated       = "scoring.activation_changed"
	OpCredentialIssued     = "credential.issued"
	OpCredentialRevoked    = "credential.revoked"
	OpCredentialRenewed    = "credential.renewed"
)

// Outcomes of a recorded operation.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// Record is a single notification. Sequence is assigned by the store on
// append and establishes the total order observers rely on.
type Record struct {
	Sequence  uint64    `json:"sequence"`
	Operation string    `json:"operation"`
	EntityID  string    `json:"entity_id"`
	Outcome   string    `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`

	// Processed is outbox bookkeeping, not part of the published payload.
	Processed bool `json:"-"`
}
