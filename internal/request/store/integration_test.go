//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorepass/internal/request/models"
	id "scorepass/pkg/domain"
	"scorepass/pkg/platform/sentinel"
	"scorepass/pkg/testutil/containers"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateTables(context.Background(), "credit_score_requests"))
	return NewPostgres(pg.DB)
}

func sampleRequest(now time.Time) *models.CreditScoreRequest {
	commitment := id.CommitmentOf([]byte("integration data"))
	return &models.CreditScoreRequest{
		ID:             id.DeriveRequestID("0xfintech", commitment, now, []byte("salt")),
		Subject:        id.NewIdentityID(),
		Requester:      "0xfintech",
		DataCommitment: commitment,
		Status:         models.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgresSaveAndFindRoundTrip(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	request := sampleRequest(now)
	require.NoError(t, st.Save(ctx, request))

	got, err := st.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, request.ID, got.ID)
	assert.Equal(t, request.Subject, got.Subject)
	assert.Equal(t, request.DataCommitment, got.DataCommitment)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Nil(t, got.CredentialID)

	require.ErrorIs(t, st.Save(ctx, request), sentinel.ErrConflict)
}

func TestPostgresUpdateIsCompareAndSwap(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	request := sampleRequest(now)
	require.NoError(t, st.Save(ctx, request))

	request.Status = models.StatusAttestationVerified
	request.UpdatedAt = now.Add(time.Second)
	require.NoError(t, st.Update(ctx, request, models.StatusPending))

	// The row already advanced, so a swap expecting Pending is stale.
	late := *request
	late.Status = models.StatusFailed
	require.ErrorIs(t, st.Update(ctx, &late, models.StatusPending), sentinel.ErrStale)

	missing := sampleRequest(now.Add(time.Minute))
	require.ErrorIs(t, st.Update(ctx, missing, models.StatusPending), sentinel.ErrNotFound)
}

func TestPostgresCompletedRowCarriesScoreAndCredential(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	request := sampleRequest(now)
	require.NoError(t, st.Save(ctx, request))

	credentialID := id.NewCredentialID()
	request.Status = models.StatusCompleted
	request.EncryptedScore = []byte("ciphertext")
	request.ScoreCommitment = id.CommitmentOf(request.EncryptedScore)
	request.CredentialID = &credentialID
	request.UpdatedAt = now.Add(time.Second)
	require.NoError(t, st.Update(ctx, request, models.StatusPending))

	got, err := st.FindByID(ctx, request.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("ciphertext"), got.EncryptedScore)
	assert.Equal(t, request.ScoreCommitment, got.ScoreCommitment)
	require.NotNil(t, got.CredentialID)
	assert.Equal(t, credentialID, *got.CredentialID)
}

func TestPostgresListStuckBefore(t *testing.T) {
	st := newPostgresStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	old := sampleRequest(now.Add(-48 * time.Hour))
	fresh := sampleRequest(now)
	done := sampleRequest(now.Add(-72 * time.Hour))
	require.NoError(t, st.Save(ctx, old))
	require.NoError(t, st.Save(ctx, fresh))
	require.NoError(t, st.Save(ctx, done))

	done.Status = models.StatusFailed
	require.NoError(t, st.Update(ctx, done, models.StatusPending))

	stuck, err := st.ListStuckBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, old.ID, stuck[0].ID)
}
