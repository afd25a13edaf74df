package enc

import (
	"crypto/rand"
	"encoding/binary"
)

// Simulator is a plaintext stand-in for a real encryption backend. It masks
// every value with a per-instance key so ciphertext handles are not
// accidentally comparable or readable outside the primitives, while keeping
// all operations deterministic and order-preserving as the contract requires.
type Simulator struct {
	key uint64
}

type simCipher struct {
	masked uint64
}

// NewSimulator creates a simulator with a random masking key.
func NewSimulator() *Simulator {
	var raw [8]byte
	if _, err := rand.Read(raw[:]); err != nil {
		// crypto/rand never fails on supported platforms; a fixed key still
		// satisfies the contract, it only weakens the accidental-misuse guard.
		return &Simulator{key: 0x9e3779b97f4a7c15}
	}
	return &Simulator{key: binary.BigEndian.Uint64(raw[:])}
}

// NewSimulatorWithKey creates a simulator with a fixed key. Two instances
// with the same key accept each other's ciphertexts, which models key
// distribution between the scoring engine and the credential consumer.
func NewSimulatorWithKey(key uint64) *Simulator {
	return &Simulator{key: key}
}

func (s *Simulator) Encrypt(v uint64) Cipher {
	return Cipher{inner: simCipher{masked: v ^ s.key}}
}

func (s *Simulator) Decrypt(c Cipher) (uint64, error) {
	sc, ok := c.inner.(simCipher)
	if !ok {
		return 0, ErrForeignCipher
	}
	return sc.masked ^ s.key, nil
}

func (s *Simulator) Add(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 { return x + y })
}

func (s *Simulator) Sub(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 {
		if y > x {
			return 0
		}
		return x - y
	})
}

func (s *Simulator) Mul(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 { return x * y })
}

func (s *Simulator) Div(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 {
		if y == 0 {
			return 0
		}
		return x / y
	})
}

func (s *Simulator) Lt(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 {
		if x < y {
			return 1
		}
		return 0
	})
}

func (s *Simulator) Gt(a, b Cipher) Cipher {
	return s.lift2(a, b, func(x, y uint64) uint64 {
		if x > y {
			return 1
		}
		return 0
	})
}

func (s *Simulator) Select(cond, a, b Cipher) Cipher {
	c := s.mustPlain(cond)
	x := s.mustPlain(a)
	y := s.mustPlain(b)
	// Branch-free in the value domain: cond is 0 or 1 by construction.
	bit := uint64(0)
	if c != 0 {
		bit = 1
	}
	return s.Encrypt(bit*x + (1-bit)*y)
}

// Serialize encodes the masked value. The encoding is opaque to callers; only
// a simulator holding the same key can recover the plaintext.
func (s *Simulator) Serialize(c Cipher) ([]byte, error) {
	sc, ok := c.inner.(simCipher)
	if !ok {
		return nil, ErrForeignCipher
	}
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, sc.masked)
	return raw, nil
}

func (s *Simulator) Deserialize(raw []byte) (Cipher, error) {
	if len(raw) != 8 {
		return Cipher{}, ErrMalformedCipher
	}
	return Cipher{inner: simCipher{masked: binary.BigEndian.Uint64(raw)}}, nil
}

func (s *Simulator) lift2(a, b Cipher, op func(x, y uint64) uint64) Cipher {
	return s.Encrypt(op(s.mustPlain(a), s.mustPlain(b)))
}

// mustPlain unmasks inside the trust boundary of the backend. A foreign or
// zero-value cipher decays to zero rather than panicking: the scoring
// pipeline validates its inputs before entering the encrypted domain, and a
// total function keeps the primitives composable.
func (s *Simulator) mustPlain(c Cipher) uint64 {
	sc, ok := c.inner.(simCipher)
	if !ok {
		return 0
	}
	return sc.masked ^ s.key
}
