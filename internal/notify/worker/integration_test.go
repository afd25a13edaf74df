//go:build integration

package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scorepass/internal/notify"
	"scorepass/internal/platform/kafka/producer"
	"scorepass/pkg/testutil/containers"
)

// End to end: records appended to the Postgres outbox come out of Redpanda in
// sequence order, and each one is marked processed exactly once.
func TestOutboxPublishesToRedpandaInOrder(t *testing.T) {
	ctx := context.Background()
	mgr := containers.GetManager()

	pg := mgr.GetPostgres(t)
	require.NoError(t, pg.TruncateTables(ctx, "notifications"))
	rp := mgr.GetRedpanda(t)

	store := notify.NewPostgres(pg.DB)

	prod, err := producer.New(producer.Config{
		Brokers:         rp.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer prod.Close()

	const topic = "scorepass.notifications.integration"

	now := time.Now().UTC().Truncate(time.Microsecond)
	appended := []*notify.Record{
		{Operation: notify.OpRequestInitiated, EntityID: "req-1", Outcome: notify.OutcomeOK, Timestamp: now},
		{Operation: notify.OpRequestScoring, EntityID: "req-1", Outcome: notify.OutcomeOK, Timestamp: now.Add(time.Second)},
		{Operation: notify.OpRequestCompleted, EntityID: "req-1", Outcome: notify.OutcomeOK, Timestamp: now.Add(2 * time.Second)},
	}
	for _, record := range appended {
		require.NoError(t, store.Append(ctx, record))
	}

	w := New(store, prod, WithTopic(topic))
	w.Poll(ctx)

	records, err := rp.Consume(ctx, topic, len(appended), 30*time.Second)
	require.NoError(t, err)
	require.Len(t, records, len(appended))

	for i, raw := range records {
		var got notify.Record
		require.NoError(t, json.Unmarshal(raw.Value, &got))
		assert.Equal(t, appended[i].Sequence, got.Sequence)
		assert.Equal(t, appended[i].Operation, got.Operation)
		assert.Equal(t, "req-1", string(raw.Key))

		var operation string
		for _, h := range raw.Headers {
			if h.Key == "operation" {
				operation = string(h.Value)
			}
		}
		assert.Equal(t, appended[i].Operation, operation)
	}

	unprocessed, err := store.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	// A second poll finds nothing to publish.
	w.Poll(ctx)
	extra, err := rp.Consume(ctx, topic, len(appended)+1, 3*time.Second)
	require.NoError(t, err)
	assert.Len(t, extra, len(appended))
}
