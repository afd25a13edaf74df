package service

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorepass/internal/attestation/models"
	"scorepass/internal/attestation/signature"
	"scorepass/internal/attestation/store"
	"scorepass/internal/notify"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/requestcontext"
)

var testSalt = []byte("test-chain-salt")

type fixture struct {
	svc     *Service
	outbox  *notify.InMemoryStore
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	baseNow time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	outbox := notify.NewInMemoryStore()
	svc := NewService(store.New(), notify.NewPublisher(outbox, nil), testSalt)

	f := &fixture{
		svc:     svc,
		outbox:  outbox,
		pub:     pub,
		priv:    priv,
		baseNow: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.SetValidator(f.ctxAt("admin", f.baseNow), "0xvalidator", pub, true))
	return f
}

func (f *fixture) ctxAt(principal id.Principal, at time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	return requestcontext.WithTime(ctx, at)
}

func (f *fixture) submitRequest(t *testing.T, commitment id.Commitment) id.RequestID {
	t.Helper()
	requestID, err := f.svc.SubmitRequest(f.ctxAt("0xrequester", f.baseNow), commitment)
	require.NoError(t, err)
	return requestID
}

// attest signs at signedAt and submits at submitAt.
func (f *fixture) attest(requestID id.RequestID, commitment id.Commitment, signedAt, submitAt time.Time) error {
	sig := signature.Sign(f.priv, requestID, commitment, signedAt, testSalt)
	return f.svc.SubmitAttestation(f.ctxAt("0xvalidator", submitAt), requestID, commitment, sig, signedAt)
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))

	requestID := f.submitRequest(t, commitment)
	assert.False(t, requestID.IsZero())

	request, err := f.svc.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, request.Status)
	assert.Equal(t, commitment, request.Commitment)
}

func TestSubmitRequestZeroCommitment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitRequest(f.ctxAt("0xrequester", f.baseNow), id.Commitment{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitRequestDuplicateDerivedID(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))

	// Identical caller, commitment, and instant derive the same ID.
	_, err := f.svc.SubmitRequest(f.ctxAt("0xrequester", f.baseNow), commitment)
	require.NoError(t, err)
	_, err = f.svc.SubmitRequest(f.ctxAt("0xrequester", f.baseNow), commitment)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	// A later instant derives a fresh ID.
	_, err = f.svc.SubmitRequest(f.ctxAt("0xrequester", f.baseNow.Add(time.Nanosecond)), commitment)
	assert.NoError(t, err)
}

func TestSubmitAttestationAndVerify(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	// Signed 1h1s before submission, within [minDelay, maxAge].
	signedAt := f.baseNow.Add(-(time.Hour + time.Second))
	require.NoError(t, f.attest(requestID, commitment, signedAt, f.baseNow))

	request, err := f.svc.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttested, request.Status)

	verified, err := f.svc.Verify(f.ctxAt("anyone", f.baseNow), requestID)
	require.NoError(t, err)
	assert.True(t, verified)

	request, err = f.svc.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, request.Status)
}

func TestSubmitAttestationTooSoonAfterSigning(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	// Only 10 minutes since signing, below the 1 hour minimum delay.
	signedAt := f.baseNow.Add(-10 * time.Minute)
	err := f.attest(requestID, commitment, signedAt, f.baseNow)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	request, getErr := f.svc.Get(context.Background(), requestID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StatusRequested, request.Status)
}

func TestSubmitAttestationNonWhitelistedValidator(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	signedAt := f.baseNow.Add(-2 * time.Hour)
	sig := signature.Sign(f.priv, requestID, commitment, signedAt, testSalt)
	err := f.svc.SubmitAttestation(f.ctxAt("0xintruder", f.baseNow), requestID, commitment, sig, signedAt)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestSubmitAttestationCommitmentMismatch(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	other := id.CommitmentOf([]byte("other data"))
	signedAt := f.baseNow.Add(-2 * time.Hour)
	err := f.attest(requestID, other, signedAt, f.baseNow)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestSubmitAttestationBadSignature(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	_, otherKey, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	signedAt := f.baseNow.Add(-2 * time.Hour)
	sig := signature.Sign(otherKey, requestID, commitment, signedAt, testSalt)
	err = f.svc.SubmitAttestation(f.ctxAt("0xvalidator", f.baseNow), requestID, commitment, sig, signedAt)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestVerifyRejectsStaleAttestation(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	signedAt := f.baseNow.Add(-2 * time.Hour)
	require.NoError(t, f.attest(requestID, commitment, signedAt, f.baseNow))

	// Verification happens after maxAge (24h) has elapsed since signing.
	late := signedAt.Add(24*time.Hour + time.Minute)
	verified, err := f.svc.Verify(f.ctxAt("anyone", late), requestID)
	require.NoError(t, err)
	assert.False(t, verified)

	request, err := f.svc.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, request.Status)
}

func TestVerifyRejectsDewhitelistedValidator(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	signedAt := f.baseNow.Add(-2 * time.Hour)
	require.NoError(t, f.attest(requestID, commitment, signedAt, f.baseNow))

	// Validator removed between submission and verification.
	require.NoError(t, f.svc.SetValidator(f.ctxAt("admin", f.baseNow), "0xvalidator", f.pub, false))

	verified, err := f.svc.Verify(f.ctxAt("anyone", f.baseNow), requestID)
	require.NoError(t, err)
	assert.False(t, verified)

	request, err := f.svc.Get(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, request.Status)
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	signedAt := f.baseNow.Add(-2 * time.Hour)
	require.NoError(t, f.attest(requestID, commitment, signedAt, f.baseNow))

	verified, err := f.svc.Verify(f.ctxAt("anyone", f.baseNow), requestID)
	require.NoError(t, err)
	assert.True(t, verified)

	_, err = f.svc.Verify(f.ctxAt("anyone", f.baseNow), requestID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyProcessed))
}

func TestVerifyUnfulfilledRequest(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	_, err := f.svc.Verify(f.ctxAt("anyone", f.baseNow), requestID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestVerifyWindowBoundaries(t *testing.T) {
	f := newFixture(t)
	signedAt := f.baseNow

	cases := []struct {
		name     string
		verifyAt time.Time
		want     bool
	}{
		{"exactly min delay", signedAt.Add(time.Hour), true},
		{"just before min delay", signedAt.Add(time.Hour - time.Second), false},
		{"exactly max age", signedAt.Add(24 * time.Hour), true},
		{"just past max age", signedAt.Add(24*time.Hour + time.Second), false},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			commitment := id.CommitmentOf([]byte{byte(i)})
			requestID := f.submitRequest(t, commitment)
			require.NoError(t, f.attest(requestID, commitment, signedAt, signedAt.Add(2*time.Hour)))

			verified, err := f.svc.Verify(f.ctxAt("anyone", tc.verifyAt), requestID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, verified)
		})
	}
}

func TestSetWindow(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctxAt("admin", f.baseNow)

	require.NoError(t, f.svc.SetWindow(ctx, 30*time.Minute, 48*time.Hour))
	minDelay, maxAge := f.svc.Window()
	assert.Equal(t, 30*time.Minute, minDelay)
	assert.Equal(t, 48*time.Hour, maxAge)

	err := f.svc.SetWindow(ctx, 0, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	err = f.svc.SetWindow(ctx, 2*time.Hour, time.Hour)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestLastAttestationWins(t *testing.T) {
	f := newFixture(t)
	commitment := id.CommitmentOf([]byte("data"))
	requestID := f.submitRequest(t, commitment)

	first := f.baseNow.Add(-3 * time.Hour)
	second := f.baseNow.Add(-2 * time.Hour)
	require.NoError(t, f.attest(requestID, commitment, first, f.baseNow))
	require.NoError(t, f.attest(requestID, commitment, second, f.baseNow))

	// The retained attestation is the second one: verifying after the first
	// signature's max age but within the second's still succeeds.
	verifyAt := first.Add(24*time.Hour + 30*time.Minute)
	verified, err := f.svc.Verify(f.ctxAt("anyone", verifyAt), requestID)
	require.NoError(t, err)
	assert.True(t, verified)
}
