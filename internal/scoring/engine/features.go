// Package engine derives encrypted credit features from an opaque blob and
// evaluates the scoring model entirely in the encrypted domain.
package engine

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"scorepass/internal/scoring/models"
	"scorepass/pkg/enc"
)

// Feature value ranges. Each raw 32-bit window is reduced modulo the range
// width so derived features always fall inside plausible bounds.
const (
	maxIncome     = 20000 // monthly, currency units
	maxDebt       = 500000
	maxDTI        = 60 // percent
	maxUtil       = 100
	minHistory    = 300
	maxHistory    = 850
	maxAgeMonths  = 360
	maxInquiries  = 10
	maxEmployment = 240
)

// ExtractFeatures derives the eight encrypted features from the input blob.
//
// Derivation is deterministic: the blob is hashed with SHA3-256 and the digest
// is sliced into eight non-overlapping 32-bit windows, each reduced modulo its
// feature range and then encrypted. This stands in for a real decoder of
// encrypted bureau data; replacing it must not change anything downstream of
// the returned CreditFeatures.
func ExtractFeatures(backend enc.Backend, blob []byte) models.CreditFeatures {
	digest := sha3.Sum256(blob)

	window := func(i int) uint64 {
		return uint64(binary.BigEndian.Uint32(digest[i*4 : i*4+4]))
	}

	return models.CreditFeatures{
		Income:      backend.Encrypt(window(0) % (maxIncome + 1)),
		Debt:        backend.Encrypt(window(1) % (maxDebt + 1)),
		DTI:         backend.Encrypt(window(2) % (maxDTI + 1)),
		Utilization: backend.Encrypt(window(3) % (maxUtil + 1)),
		History:     backend.Encrypt(minHistory + window(4)%(maxHistory-minHistory+1)),
		AgeMonths:   backend.Encrypt(window(5) % (maxAgeMonths + 1)),
		Inquiries:   backend.Encrypt(window(6) % (maxInquiries + 1)),
		Employment:  backend.Encrypt(window(7) % (maxEmployment + 1)),
	}
}
