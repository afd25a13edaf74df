package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingService struct {
	calls     int
	deadlines []time.Duration
	failN     int
	err       error
}

func (s *recordingService) FailExpired(ctx context.Context, deadline time.Duration) (int, error) {
	s.calls++
	s.deadlines = append(s.deadlines, deadline)
	return s.failN, s.err
}

func TestSweepInvokesServiceWithDeadline(t *testing.T) {
	svc := &recordingService{failN: 2}
	s := New(svc, 7*24*time.Hour, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	s.Sweep(context.Background())

	assert.Equal(t, 1, svc.calls)
	assert.Equal(t, []time.Duration{7 * 24 * time.Hour}, svc.deadlines)
}

func TestSweepToleratesServiceErrors(t *testing.T) {
	svc := &recordingService{err: errors.New("connection refused")}
	s := New(svc, time.Hour)

	// Errors are logged and the loop keeps going.
	s.Sweep(context.Background())
	s.Sweep(context.Background())
	assert.Equal(t, 2, svc.calls)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := &recordingService{}
	s := New(svc, time.Hour, WithInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancellation")
	}
	assert.Greater(t, svc.calls, 0)
}
