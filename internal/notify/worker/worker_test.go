package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorepass/internal/notify"
	"scorepass/internal/platform/kafka/producer"
)

type capturingProducer struct {
	messages []*producer.Message
	failAt   int // 0 means never fail
}

func (p *capturingProducer) Produce(_ context.Context, msg *producer.Message) error {
	if p.failAt > 0 && len(p.messages)+1 == p.failAt {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func TestPollPublishesInSequenceOrder(t *testing.T) {
	store := notify.NewInMemoryStore()
	pub := notify.NewPublisher(store, nil)
	ctx := context.Background()

	pub.Emit(ctx, notify.OpRequestInitiated, "req-1", notify.OutcomeOK)
	pub.Emit(ctx, notify.OpAttestationVerified, "req-1", notify.OutcomeOK)
	pub.Emit(ctx, notify.OpRequestCompleted, "req-1", notify.OutcomeOK)

	prod := &capturingProducer{}
	w := New(store, prod)
	w.Poll(ctx)

	require.Len(t, prod.messages, 3)
	var first notify.Record
	require.NoError(t, json.Unmarshal(prod.messages[0].Value, &first))
	assert.Equal(t, notify.OpRequestInitiated, first.Operation)
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, notify.OpRequestInitiated, prod.messages[0].Headers["operation"])
	assert.Equal(t, []byte("req-1"), prod.messages[0].Key)

	// Everything published is marked processed.
	remaining, err := store.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestPollStopsBatchOnPublishFailure(t *testing.T) {
	store := notify.NewInMemoryStore()
	pub := notify.NewPublisher(store, nil)
	ctx := context.Background()

	pub.Emit(ctx, notify.OpRequestInitiated, "req-1", notify.OutcomeOK)
	pub.Emit(ctx, notify.OpRequestCompleted, "req-1", notify.OutcomeOK)

	prod := &capturingProducer{failAt: 2}
	w := New(store, prod)
	w.Poll(ctx)

	require.Len(t, prod.messages, 1)
	remaining, err := store.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, notify.OpRequestCompleted, remaining[0].Operation)

	// A later poll resumes from the unpublished record, preserving order.
	prod.failAt = 0
	w.Poll(ctx)
	require.Len(t, prod.messages, 2)
	assert.Equal(t, notify.OpRequestCompleted, prod.messages[1].Headers["operation"])
}

func TestPollNeverRepublishesProcessedRecords(t *testing.T) {
	store := notify.NewInMemoryStore()
	pub := notify.NewPublisher(store, nil)
	ctx := context.Background()

	pub.Emit(ctx, notify.OpCredentialIssued, "cred-1", notify.OutcomeOK)

	prod := &capturingProducer{}
	w := New(store, prod)
	w.Poll(ctx)
	w.Poll(ctx)

	assert.Len(t, prod.messages, 1)
}
