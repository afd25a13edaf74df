package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "scorepass/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// "IDs must be valid, well-formed UUIDs".
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIdentityID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCredentialID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseIdentityID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, IdentityID(valid), id)
	})
}

func TestParseHash_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCommitment("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects short hex", func(t *testing.T) {
		_, err := ParseRequestID("abcd")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips through String", func(t *testing.T) {
		c := CommitmentOf([]byte("payroll-2026-07"))
		parsed, err := ParseCommitment(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	})
}

func TestJSONEncodesIDsAsStrings(t *testing.T) {
	identity := NewIdentityID()
	commitment := CommitmentOf([]byte("payroll-2026-07"))

	payload, err := json.Marshal(map[string]any{
		"identity":   identity,
		"commitment": commitment,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"identity":"`+identity.String()+`","commitment":"`+commitment.String()+`"}`, string(payload))

	var decoded struct {
		Identity   IdentityID `json:"identity"`
		Commitment Commitment `json:"commitment"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, identity, decoded.Identity)
	assert.Equal(t, commitment, decoded.Commitment)
}

func TestDeriveRequestID(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	commitment := CommitmentOf([]byte("data"))
	salt := []byte("chain-salt")

	t.Run("is deterministic for identical inputs", func(t *testing.T) {
		a := DeriveRequestID("requester-1", commitment, now, salt)
		b := DeriveRequestID("requester-1", commitment, now, salt)
		assert.Equal(t, a, b)
	})

	t.Run("differs across callers", func(t *testing.T) {
		a := DeriveRequestID("requester-1", commitment, now, salt)
		b := DeriveRequestID("requester-2", commitment, now, salt)
		assert.NotEqual(t, a, b)
	})

	t.Run("differs across instants", func(t *testing.T) {
		a := DeriveRequestID("requester-1", commitment, now, salt)
		b := DeriveRequestID("requester-1", commitment, now.Add(time.Nanosecond), salt)
		assert.NotEqual(t, a, b)
	})

	t.Run("never derives the zero ID", func(t *testing.T) {
		id := DeriveRequestID("requester-1", commitment, now, salt)
		assert.False(t, id.IsZero())
	})
}
