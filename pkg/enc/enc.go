// Package enc defines the encrypted-arithmetic contract the scoring engine
// computes against. Values live behind the opaque Cipher handle; the only way
// to combine or inspect them is through a Backend. Swapping in a real
// homomorphic-encryption scheme means implementing Backend and touching
// nothing downstream.
//
// Contract every Backend must satisfy:
//   - Deterministic: the same operation on the same ciphertexts yields a
//     ciphertext decrypting to the same value.
//   - Order-preserving: for plaintexts a, b the primitives behave like the
//     corresponding unsigned integer operations (Sub saturates at zero,
//     Div by zero yields zero).
//   - Non-leaking: no primitive decrypts an intermediate value; Lt/Gt return
//     encrypted booleans (0 or 1) and Select chooses between branches without
//     revealing which was taken.
package enc

import "errors"

var (
	// ErrForeignCipher is returned when a ciphertext was not produced by
	// this backend (or is the zero value).
	ErrForeignCipher = errors.New("ciphertext not produced by this backend")

	// ErrMalformedCipher is returned when deserializing bytes that do not
	// encode a ciphertext.
	ErrMalformedCipher = errors.New("malformed ciphertext")
)

// Cipher is an opaque handle over an encrypted unsigned integer. The zero
// value is not a valid ciphertext. Cipher exposes no arithmetic, comparison,
// or accessor surface on purpose; all computation goes through a Backend.
type Cipher struct {
	inner any
}

// IsZero reports whether the handle holds no ciphertext at all. It says
// nothing about the encrypted value.
func (c Cipher) IsZero() bool { return c.inner == nil }

// Backend is the total API surface of the encrypted domain.
type Backend interface {
	// Encrypt lifts a plaintext into the encrypted domain.
	Encrypt(v uint64) Cipher

	// Decrypt recovers a plaintext. Only callers holding the backend may
	// decrypt; the scoring pipeline never does.
	Decrypt(c Cipher) (uint64, error)

	// Add returns a ciphertext of a + b.
	Add(a, b Cipher) Cipher

	// Sub returns a ciphertext of a - b, saturating at zero.
	Sub(a, b Cipher) Cipher

	// Mul returns a ciphertext of a * b.
	Mul(a, b Cipher) Cipher

	// Div returns a ciphertext of a / b (integer division); division by an
	// encrypted zero yields an encrypted zero.
	Div(a, b Cipher) Cipher

	// Lt returns an encrypted boolean: 1 if a < b, else 0.
	Lt(a, b Cipher) Cipher

	// Gt returns an encrypted boolean: 1 if a > b, else 0.
	Gt(a, b Cipher) Cipher

	// Select returns a if cond decrypts to non-zero, else b. This is the
	// only conditional-logic primitive in the encrypted domain.
	Select(cond, a, b Cipher) Cipher

	// Serialize encodes a ciphertext for storage or transport.
	Serialize(c Cipher) ([]byte, error)

	// Deserialize decodes a ciphertext previously produced by Serialize on
	// a backend holding the same key material.
	Deserialize(raw []byte) (Cipher, error)
}
