package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorepass/internal/credential/store"
	"scorepass/internal/notify"
	id "scorepass/pkg/domain"
	dErrors "scorepass/pkg/domain-errors"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/requestcontext"
)

var baseNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *store.InMemoryStore) {
	st := store.New()
	svc := NewService(st, notify.NewPublisher(notify.NewInMemoryStore(), nil))
	return svc, st
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(), baseNow)
}

func TestIssue(t *testing.T) {
	svc, _ := newTestService()
	subject := id.NewIdentityID()
	commitment := id.CommitmentOf([]byte("score"))

	credential, err := svc.Issue(testCtx(), subject, commitment, baseNow.Add(90*24*time.Hour), "ipfs://meta")
	require.NoError(t, err)
	assert.True(t, credential.Active)
	assert.Equal(t, subject, credential.Subject)
	assert.True(t, credential.IsValid(baseNow))
	assert.False(t, credential.IsValid(baseNow.Add(91*24*time.Hour)))
}

func TestIssueValidation(t *testing.T) {
	svc, _ := newTestService()
	subject := id.NewIdentityID()
	commitment := id.CommitmentOf([]byte("score"))

	_, err := svc.Issue(testCtx(), id.IdentityID{}, commitment, baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Issue(testCtx(), subject, id.Commitment{}, baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Issue(testCtx(), subject, commitment, baseNow, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestIssueCommitmentAlreadyBound(t *testing.T) {
	svc, _ := newTestService()
	commitment := id.CommitmentOf([]byte("score"))

	_, err := svc.Issue(testCtx(), id.NewIdentityID(), commitment, baseNow.Add(time.Hour), "")
	require.NoError(t, err)

	_, err = svc.Issue(testCtx(), id.NewIdentityID(), commitment, baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacity))
}

func TestRevokeReleasesCommitment(t *testing.T) {
	svc, _ := newTestService()
	commitment := id.CommitmentOf([]byte("score"))

	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), commitment, baseNow.Add(time.Hour), "")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(testCtx(), credential.ID))

	got, err := svc.Get(testCtx(), credential.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	require.NotNil(t, got.RevokedAt)

	// The commitment is free for a new credential.
	_, err = svc.Issue(testCtx(), id.NewIdentityID(), commitment, baseNow.Add(time.Hour), "")
	assert.NoError(t, err)
}

func TestRevokeInactive(t *testing.T) {
	svc, _ := newTestService()

	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), id.CommitmentOf([]byte("score")), baseNow.Add(time.Hour), "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(testCtx(), credential.ID))

	err = svc.Revoke(testCtx(), credential.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
}

func TestRenewRebindsAtomically(t *testing.T) {
	svc, _ := newTestService()
	oldCommitment := id.CommitmentOf([]byte("old score"))
	newCommitment := id.CommitmentOf([]byte("new score"))

	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), oldCommitment, baseNow.Add(time.Hour), "ipfs://old")
	require.NoError(t, err)

	renewed, err := svc.Renew(testCtx(), credential.ID, newCommitment, baseNow.Add(2*time.Hour), "ipfs://new")
	require.NoError(t, err)
	assert.Equal(t, newCommitment, renewed.ScoreCommitment)
	assert.Equal(t, credential.Subject, renewed.Subject)
	require.NotNil(t, renewed.RenewedAt)

	// Old commitment released, new one claimed.
	_, err = svc.Issue(testCtx(), id.NewIdentityID(), oldCommitment, baseNow.Add(time.Hour), "")
	assert.NoError(t, err)
	_, err = svc.Issue(testCtx(), id.NewIdentityID(), newCommitment, baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacity))
}

func TestRenewInactiveCredential(t *testing.T) {
	svc, _ := newTestService()

	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), id.CommitmentOf([]byte("score")), baseNow.Add(time.Hour), "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(testCtx(), credential.ID))

	_, err = svc.Renew(testCtx(), credential.ID, id.CommitmentOf([]byte("fresh")), baseNow.Add(time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStaleState))
}

func TestRenewOntoBoundCommitment(t *testing.T) {
	svc, _ := newTestService()
	first := id.CommitmentOf([]byte("first"))
	second := id.CommitmentOf([]byte("second"))

	_, err := svc.Issue(testCtx(), id.NewIdentityID(), first, baseNow.Add(time.Hour), "")
	require.NoError(t, err)
	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), second, baseNow.Add(time.Hour), "")
	require.NoError(t, err)

	_, err = svc.Renew(testCtx(), credential.ID, first, baseNow.Add(2*time.Hour), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacity))
}

// The subject binding is structural: the store rejects any update that names
// a different subject, regardless of caller. There is no transfer operation
// to test against at the service layer because none exists.
func TestSubjectIsImmutable(t *testing.T) {
	svc, st := newTestService()

	credential, err := svc.Issue(testCtx(), id.NewIdentityID(), id.CommitmentOf([]byte("score")), baseNow.Add(time.Hour), "")
	require.NoError(t, err)

	moved := *credential
	moved.Subject = id.NewIdentityID()
	err = st.Update(context.Background(), &moved)
	assert.ErrorIs(t, err, sentinel.ErrInvalidState)
}

func TestListBySubjectIncludesRevoked(t *testing.T) {
	svc, _ := newTestService()
	subject := id.NewIdentityID()

	first, err := svc.Issue(testCtx(), subject, id.CommitmentOf([]byte("one")), baseNow.Add(time.Hour), "")
	require.NoError(t, err)
	_, err = svc.Issue(testCtx(), subject, id.CommitmentOf([]byte("two")), baseNow.Add(time.Hour), "")
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(testCtx(), first.ID))

	credentials, err := svc.ListBySubject(testCtx(), subject)
	require.NoError(t, err)
	assert.Len(t, credentials, 2)
}
