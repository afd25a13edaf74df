// Package models defines the credit score request and its status machine.
package models

import (
	"time"

	id "scorepass/pkg/domain"
)

// Status is the lifecycle state of a credit score request. Transitions are
// strictly forward: Pending → AttestationVerified → ScoringInProgress →
// Completed, with Failed reachable from any non-terminal state.
type Status string

const (
	StatusPending             Status = "pending"
	StatusAttestationVerified Status = "attestation_verified"
	StatusScoringInProgress   Status = "scoring_in_progress"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var statusRank = map[Status]int{
	StatusPending:             0,
	StatusAttestationVerified: 1,
	StatusScoringInProgress:   2,
	StatusCompleted:           3,
	StatusFailed:              3,
}

// CanTransitionTo reports whether moving from s to next respects the
// forward-only ordering.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return statusRank[next] == statusRank[s]+1
}

// CreditScoreRequest tracks one scoring workflow from initiation to a
// terminal state. The ID doubles as the attestation request ID: both are
// derived from the same (requester, commitment, time, salt) tuple.
type CreditScoreRequest struct {
	ID              id.RequestID     `json:"id"`
	Subject         id.IdentityID    `json:"subject"`
	Requester       id.Principal     `json:"requester"`
	DataCommitment  id.Commitment    `json:"data_commitment"`
	Status          Status           `json:"status"`
	EncryptedScore  []byte           `json:"encrypted_score,omitempty"`
	ScoreCommitment id.Commitment    `json:"score_commitment,omitempty"`
	CredentialID    *id.CredentialID `json:"credential_id,omitempty"`
	FailureReason   string           `json:"failure_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// InitiatePayload is the request body for initiating a scoring request.
type InitiatePayload struct {
	SubjectID      string `json:"subject_id"`
	DataCommitment string `json:"data_commitment"`
}

// ScorePayload carries the opaque encrypted input blob for server-side
// scoring. JSON encodes the bytes as base64.
type ScorePayload struct {
	Data []byte `json:"data"`
}

// ScoringResultPayload delivers an externally computed encrypted score.
type ScoringResultPayload struct {
	EncryptedScore []byte `json:"encrypted_score"`
}
