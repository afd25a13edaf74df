package domain

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/sha3"

	dErrors "scorepass/pkg/domain-errors"
)

// Commitment is a collision-resistant hash standing in for off-ledger data
// without revealing it.
type Commitment [32]byte

// RequestID identifies a credit score request. It is content-derived
// (hash of caller, commitment, timestamp, and a chain salt) rather than a
// sequential counter, so concurrent writers never coordinate on allocation
// and resubmission with identical inputs in the same instant collides.
type RequestID [32]byte

// CommitmentOf hashes arbitrary data into a commitment.
func CommitmentOf(data []byte) Commitment {
	return Commitment(sha3.Sum256(data))
}

// ParseCommitment decodes a 64-char hex string into a commitment.
func ParseCommitment(s string) (Commitment, error) {
	var c Commitment
	if err := parseHash(s, c[:], "commitment"); err != nil {
		return Commitment{}, err
	}
	return c, nil
}

// ParseRequestID decodes a 64-char hex string into a request ID.
func ParseRequestID(s string) (RequestID, error) {
	var r RequestID
	if err := parseHash(s, r[:], "request ID"); err != nil {
		return RequestID{}, err
	}
	return r, nil
}

// DeriveRequestID computes the deterministic request identifier.
// Two calls with identical inputs in the same instant derive the same ID,
// which is how duplicate submissions are rejected.
func DeriveRequestID(caller Principal, commitment Commitment, at time.Time, salt []byte) RequestID {
	h := sha3.New256()
	h.Write([]byte(caller))
	h.Write(commitment[:])
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.UnixNano()))
	h.Write(ts[:])
	h.Write(salt)
	var id RequestID
	copy(id[:], h.Sum(nil))
	return id
}

func (c Commitment) String() string { return hex.EncodeToString(c[:]) }
func (r RequestID) String() string  { return hex.EncodeToString(r[:]) }

func (c Commitment) IsZero() bool { return c == Commitment{} }
func (r RequestID) IsZero() bool  { return r == RequestID{} }

// Text marshaling so JSON payloads carry hex strings, not byte arrays.

func (c Commitment) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
func (r RequestID) MarshalText() ([]byte, error)  { return []byte(r.String()), nil }

func (c *Commitment) UnmarshalText(text []byte) error {
	parsed, err := ParseCommitment(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (r *RequestID) UnmarshalText(text []byte) error {
	parsed, err := ParseRequestID(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func parseHash(s string, dst []byte, label string) error {
	if s == "" {
		return dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(dst) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	copy(dst, raw)
	return nil
}
