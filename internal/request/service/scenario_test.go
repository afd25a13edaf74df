package service

import (
	"context"
	"crypto/ed25519"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	attestationsvc "scorepass/internal/attestation/service"
	attestationstore "scorepass/internal/attestation/store"
	"scorepass/internal/attestation/signature"
	credentialsvc "scorepass/internal/credential/service"
	credentialstore "scorepass/internal/credential/store"
	identitysvc "scorepass/internal/identity/service"
	identitystore "scorepass/internal/identity/store"
	"scorepass/internal/notify"
	"scorepass/internal/request/models"
	"scorepass/internal/request/store"
	scoringsvc "scorepass/internal/scoring/service"
	scoringstore "scorepass/internal/scoring/store"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/enc"
	"scorepass/pkg/requestcontext"
)

var scenarioSalt = []byte("test-chain-salt")

// stack wires the orchestrator to real collaborators over in-memory stores.
type stack struct {
	svc          *Service
	attestations *attestationsvc.Service
	credentials  *credentialsvc.Service
	backend      *enc.Simulator
	outbox       *notify.InMemoryStore
	priv         ed25519.PrivateKey
	baseNow      time.Time
	subject      id.IdentityID
}

func newStack(t *testing.T) *stack {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	backend := enc.NewSimulator()
	outbox := notify.NewInMemoryStore()
	notifier := notify.NewPublisher(outbox, nil)
	baseNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	identities := identitysvc.NewService(identitystore.New(), notifier)
	attestations := attestationsvc.NewService(attestationstore.New(), notifier, scenarioSalt)
	scoring := scoringsvc.NewService(scoringstore.New(), backend, notifier)
	credentials := credentialsvc.NewService(credentialstore.New(), notifier)

	st := &stack{
		attestations: attestations,
		credentials:  credentials,
		backend:      backend,
		outbox:       outbox,
		priv:         priv,
		baseNow:      baseNow,
	}
	st.svc = NewService(
		store.New(),
		identities,
		attestations,
		scoring,
		credentials,
		backend,
		notifier,
		Config{CredentialTTL: 90 * 24 * time.Hour},
	)

	adminCtx := st.ctxAt("admin", baseNow)
	subject, err := identities.Register(adminCtx, "0xalice", "passport-123")
	require.NoError(t, err)
	_, err = identities.Verify(adminCtx, subject.ID)
	require.NoError(t, err)
	require.NoError(t, identities.Authorize(adminCtx, subject.ID, "0xfintech"))
	require.NoError(t, attestations.SetValidator(adminCtx, "0xvalidator", pub, true))
	require.NoError(t, scoring.SetParameters(adminCtx, 450, 100, 850))
	require.NoError(t, scoring.SetActive(adminCtx, true))

	st.subject = subject.ID
	return st
}

func (st *stack) ctxAt(principal id.Principal, at time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), principal)
	return requestcontext.WithTime(ctx, at)
}

// initiate opens a request and attaches a valid attestation signed long
// enough ago to clear the minimum delay.
func (st *stack) initiateAttested(t *testing.T, commitment id.Commitment) *models.CreditScoreRequest {
	t.Helper()
	request, err := st.svc.Initiate(st.ctxAt("0xfintech", st.baseNow), st.subject, commitment)
	require.NoError(t, err)

	signedAt := st.baseNow.Add(-(time.Hour + time.Second))
	sig := signature.Sign(st.priv, request.ID, commitment, signedAt, scenarioSalt)
	require.NoError(t, st.attestations.SubmitAttestation(
		st.ctxAt("0xvalidator", st.baseNow), request.ID, commitment, sig, signedAt))
	return request
}

func TestFullLifecycle(t *testing.T) {
	st := newStack(t)
	commitment := id.CommitmentOf([]byte("bureau export"))
	request := st.initiateAttested(t, commitment)
	assert.Equal(t, models.StatusPending, request.Status)

	observerCtx := st.ctxAt("0xobserver", st.baseNow)
	request, err := st.svc.OnAttestationProcessed(observerCtx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAttestationVerified, request.Status)

	request, err = st.svc.Score(observerCtx, request.ID, []byte("encrypted bureau blob"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, request.Status)
	require.NotEmpty(t, request.EncryptedScore)
	assert.Equal(t, id.CommitmentOf(request.EncryptedScore), request.ScoreCommitment)
	require.NotNil(t, request.CredentialID)

	credential, err := st.credentials.Get(observerCtx, *request.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, st.subject, credential.Subject)
	assert.Equal(t, request.ScoreCommitment, credential.ScoreCommitment)
	assert.True(t, credential.Active)

	cipher, err := st.backend.Deserialize(request.EncryptedScore)
	require.NoError(t, err)
	score, err := st.backend.Decrypt(cipher)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, uint64(300))
	assert.LessOrEqual(t, score, uint64(850))
}

func TestInitiateDuplicateDerivedID(t *testing.T) {
	st := newStack(t)
	commitment := id.CommitmentOf([]byte("bureau export"))
	ctx := st.ctxAt("0xfintech", st.baseNow)

	_, err := st.svc.Initiate(ctx, st.subject, commitment)
	require.NoError(t, err)

	// Same requester, commitment, and instant derive the same ID.
	_, err = st.svc.Initiate(ctx, st.subject, commitment)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	// A nanosecond later the derived ID is fresh.
	_, err = st.svc.Initiate(st.ctxAt("0xfintech", st.baseNow.Add(time.Nanosecond)), st.subject, commitment)
	assert.NoError(t, err)
}

func TestRejectedAttestationFailsTerminally(t *testing.T) {
	st := newStack(t)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))

	// Well past the maximum age: verification fails closed.
	lateCtx := st.ctxAt("0xobserver", st.baseNow.Add(25*time.Hour))
	got, err := st.svc.OnAttestationProcessed(lateCtx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "attestation rejected", got.FailureReason)

	// Terminal: nothing moves it again.
	_, err = st.svc.OnAttestationProcessed(lateCtx, request.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
	_, err = st.svc.OnScoringResult(lateCtx, request.ID, []byte("score"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
}

func TestStatusIsMonotonic(t *testing.T) {
	st := newStack(t)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))
	ctx := st.ctxAt("0xobserver", st.baseNow)

	// No skipping ahead from Pending.
	_, err := st.svc.BeginScoring(ctx, request.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
	_, err = st.svc.OnScoringResult(ctx, request.ID, []byte("score"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))

	_, err = st.svc.OnAttestationProcessed(ctx, request.ID)
	require.NoError(t, err)

	// No replaying an earlier transition.
	_, err = st.svc.OnAttestationProcessed(ctx, request.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))

	_, err = st.svc.Score(ctx, request.ID, []byte("blob"))
	require.NoError(t, err)

	_, err = st.svc.OnScoringResult(ctx, request.ID, []byte("another score"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
}

// Two racing claimers: exactly one wins the compare-and-swap.
func TestConcurrentBeginScoringOneWinner(t *testing.T) {
	st := newStack(t)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))
	ctx := st.ctxAt("0xobserver", st.baseNow)
	_, err := st.svc.OnAttestationProcessed(ctx, request.ID)
	require.NoError(t, err)

	const claimers = 4
	errs := make([]error, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.svc.BeginScoring(ctx, request.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCompletedRequestReissueBlockedByCommitment(t *testing.T) {
	st := newStack(t)
	ctx := st.ctxAt("0xobserver", st.baseNow)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))
	_, err := st.svc.OnAttestationProcessed(ctx, request.ID)
	require.NoError(t, err)
	request, err = st.svc.Score(ctx, request.ID, []byte("blob"))
	require.NoError(t, err)

	// The score commitment backs exactly one live credential.
	_, err = st.credentials.Issue(ctx, st.subject, request.ScoreCommitment, st.baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacity))
}

func TestFailExpiredSweepsStuckRequests(t *testing.T) {
	st := newStack(t)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))

	lateCtx := st.ctxAt("sweeper", st.baseNow.Add(8*24*time.Hour))
	failed, err := st.svc.FailExpired(lateCtx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	got, err := st.svc.Get(lateCtx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "request deadline exceeded", got.FailureReason)

	// Second sweep finds nothing.
	failed, err = st.svc.FailExpired(lateCtx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
}

func TestLifecycleEmitsOrderedNotifications(t *testing.T) {
	st := newStack(t)
	ctx := st.ctxAt("0xobserver", st.baseNow)
	request := st.initiateAttested(t, id.CommitmentOf([]byte("bureau export")))
	_, err := st.svc.OnAttestationProcessed(ctx, request.ID)
	require.NoError(t, err)
	_, err = st.svc.Score(ctx, request.ID, []byte("blob"))
	require.NoError(t, err)

	records, err := st.outbox.ListByEntity(context.Background(), request.ID.String())
	require.NoError(t, err)

	var ops []string
	for _, record := range records {
		ops = append(ops, record.Operation)
	}
	assert.Equal(t, []string{
		notify.OpAttestationRequested,
		notify.OpRequestInitiated,
		notify.OpAttestationSubmit,
		notify.OpAttestationVerified,
		notify.OpRequestAttested,
		notify.OpRequestScoring,
		notify.OpRequestCompleted,
	}, ops)
}
