// Package signature defines the canonical attestation message and its
// ed25519 verification. The message binds request ID, data commitment,
// signing time, and a domain salt so a signature cannot be replayed across
// requests or deployments.
package signature

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"time"

	id "scorepass/pkg/domain"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidKey       = errors.New("invalid public key")
)

// CanonicalMessage builds the byte string a validator signs. SignedAt is
// reduced to unix seconds so independent implementations agree on the
// encoding regardless of sub-second precision.
func CanonicalMessage(requestID id.RequestID, commitment id.Commitment, signedAt time.Time, domainSalt []byte) []byte {
	msg := make([]byte, 0, len(requestID)+len(commitment)+8+len(domainSalt))
	msg = append(msg, requestID[:]...)
	msg = append(msg, commitment[:]...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(signedAt.Unix()))
	msg = append(msg, ts[:]...)
	msg = append(msg, domainSalt...)
	return msg
}

// Verify checks the signature over the canonical message against the
// validator's registered public key.
func Verify(publicKey ed25519.PublicKey, requestID id.RequestID, commitment id.Commitment, signedAt time.Time, domainSalt, sig []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return ErrInvalidKey
	}
	if !ed25519.Verify(publicKey, CanonicalMessage(requestID, commitment, signedAt, domainSalt), sig) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a signature over the canonical message. Validators run this
// off-process; it lives here so tests and tooling share the exact encoding.
func Sign(privateKey ed25519.PrivateKey, requestID id.RequestID, commitment id.Commitment, signedAt time.Time, domainSalt []byte) []byte {
	return ed25519.Sign(privateKey, CanonicalMessage(requestID, commitment, signedAt, domainSalt))
}
