package dispatch_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arenaoj/judge/internal"
	"github.com/arenaoj/judge/internal/dispatch"
	"github.com/arenaoj/judge/internal/worker"
	"github.com/arenaoj/judge/pkg/messaging"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, _ string, _, _ []byte,
	_ time.Duration, _ int64) (internal.ExecutionOutcome, error) {
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return internal.ExecutionOutcome{}, ctx.Err()
	}
	return internal.ExecutionOutcome{Status: statuses.Accepted, Output: "ok\n", TimeMillis: 1, MemoryKiB: 1}, nil
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(_ context.Context, _ string, _, _ []byte,
	_ time.Duration, _ int64) (internal.ExecutionOutcome, error) {
	r.calls.Add(1)
	return internal.ExecutionOutcome{Status: statuses.Accepted, Output: "ok\n", TimeMillis: 1, MemoryKiB: 1}, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishStatus(context.Context, messaging.StatusMessage) error { return nil }
func (nopPublisher) PublishResult(context.Context, messaging.ResultMessage) error { return nil }

type countingAck struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (a *countingAck) Ack() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *countingAck) Nack(bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	return nil
}

func (a *countingAck) ackCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks
}

func submissionBody(t *testing.T, id int64) []byte {
	t.Helper()
	body, err := json.Marshal(messaging.SubmissionMessage{
		SubmissionID: id,
		Language:     "PYTHON",
		Code:         messaging.EncodePayload([]byte("print('ok')"), false),
		TimeLimit:    1.0,
		MemoryLimit:  64,
		TestCases: []messaging.TestCaseMessage{{
			ID:             "1",
			Input:          messaging.EncodePayload(nil, false),
			ExpectedOutput: messaging.EncodePayload([]byte("ok"), false),
		}},
	})
	require.NoError(t, err)
	return body
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMalformedMessageIsAckedAndDropped(t *testing.T) {
	runner := &countingRunner{}
	proc := worker.NewProcessor(runner, nopPublisher{}, discardLogger())
	disp := dispatch.New(2, proc, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan dispatch.Message)
	done := make(chan error, 1)
	go func() { done <- disp.Run(ctx, msgs) }()

	ack := &countingAck{}
	msgs <- dispatch.Message{Body: []byte("{not json"), Ack: ack}
	msgs <- dispatch.Message{Body: submissionBody(t, 1), Ack: ack}

	require.Eventually(t, func() bool { return ack.ackCount() == 2 },
		2*time.Second, 10*time.Millisecond)
	// only the valid message reached a worker
	require.Equal(t, int32(1), runner.calls.Load())

	close(msgs)
	require.NoError(t, <-done)
}

func TestBackpressureBlocksDispatchWhenPoolIsSaturated(t *testing.T) {
	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	proc := worker.NewProcessor(runner, nopPublisher{}, discardLogger())
	disp := dispatch.New(1, proc, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan dispatch.Message)
	done := make(chan error, 1)
	go func() { done <- disp.Run(ctx, msgs) }()

	ack := &countingAck{}
	send := func(id int64) { msgs <- dispatch.Message{Body: submissionBody(t, id), Ack: ack} }

	send(1)
	<-runner.started // worker is now busy with submission 1
	send(2)          // fills the bounded job queue
	send(3)          // dispatcher holds this one, blocked pushing onto the queue

	// with the pool saturated and the queue full, the next dispatch blocks
	fourthSent := make(chan struct{})
	go func() {
		send(4)
		close(fourthSent)
	}()
	select {
	case <-fourthSent:
		t.Fatal("expected dispatch to block while pool and queue are full")
	case <-time.After(200 * time.Millisecond):
	}

	// freeing a worker slot unblocks the pipeline; nothing is dropped
	runner.release <- struct{}{}
	<-runner.started
	require.Eventually(t, func() bool {
		select {
		case <-fourthSent:
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 3; i++ {
		runner.release <- struct{}{}
		if i < 2 {
			<-runner.started
		}
	}
	require.Eventually(t, func() bool { return ack.ackCount() == 4 },
		2*time.Second, 10*time.Millisecond)

	close(msgs)
	require.NoError(t, <-done)
}
