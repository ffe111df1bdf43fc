package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arenaoj/judge/internal"
	"github.com/arenaoj/judge/internal/worker"
	"github.com/arenaoj/judge/pkg/messaging"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

type fakeRunner struct {
	mu       sync.Mutex
	outcomes []internal.ExecutionOutcome
	errs     []error
	inputs   [][]byte
	langs    []string
}

func (f *fakeRunner) Run(_ context.Context, langID string, _ []byte, input []byte,
	_ time.Duration, _ int64) (internal.ExecutionOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.inputs)
	f.inputs = append(f.inputs, input)
	f.langs = append(f.langs, langID)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return internal.ExecutionOutcome{}, f.errs[idx]
	}
	if idx < len(f.outcomes) {
		return f.outcomes[idx], nil
	}
	return internal.ExecutionOutcome{Status: statuses.Accepted}, nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakePublisher struct {
	mu         sync.Mutex
	statusErr  error
	resultErr  error
	statusMsgs []messaging.StatusMessage
	resultMsgs []messaging.ResultMessage
}

func (f *fakePublisher) PublishStatus(_ context.Context, msg messaging.StatusMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return f.statusErr
	}
	f.statusMsgs = append(f.statusMsgs, msg)
	return nil
}

func (f *fakePublisher) PublishResult(_ context.Context, msg messaging.ResultMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultErr != nil {
		return f.resultErr
	}
	f.resultMsgs = append(f.resultMsgs, msg)
	return nil
}

type fakeAck struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeues []bool
}

func (f *fakeAck) Ack() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAck) Nack(requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	f.requeues = append(f.requeues, requeue)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func submission(testCases ...messaging.TestCaseMessage) messaging.SubmissionMessage {
	return messaging.SubmissionMessage{
		SubmissionID: 42,
		Language:     "PYTHON",
		Code:         messaging.EncodePayload([]byte("print('Hello, World!')"), false),
		TimeLimit:    2.0,
		MemoryLimit:  128,
		TestCases:    testCases,
	}
}

func testCase(id, input, expected string) messaging.TestCaseMessage {
	return messaging.TestCaseMessage{
		ID:             id,
		Input:          messaging.EncodePayload([]byte(input), false),
		ExpectedOutput: messaging.EncodePayload([]byte(expected), false),
	}
}

func TestProcessHappyPath(t *testing.T) {
	runner := &fakeRunner{outcomes: []internal.ExecutionOutcome{
		{Output: "Hello, World!\n", Status: statuses.Accepted, TimeMillis: 35, MemoryKiB: 4096},
	}}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(testCase("1", "", "Hello, World!")),
		Ack: ack,
	})

	require.Len(t, pub.statusMsgs, 1)
	require.Equal(t, statuses.Running, pub.statusMsgs[0].Status)
	require.Equal(t, int64(42), pub.statusMsgs[0].SubmissionID)

	require.Len(t, pub.resultMsgs, 1)
	res := pub.resultMsgs[0]
	require.Equal(t, statuses.Passed, res.Status)
	require.Len(t, res.Results, 1)
	require.Equal(t, statuses.Passed, res.Results[0].Status)
	require.Greater(t, res.Results[0].TimeTaken, 0.0)
	require.Greater(t, res.Results[0].MemoryUsed, 0.0)

	output, err := messaging.DecodePayload(res.Results[0].Output)
	require.NoError(t, err)
	require.Equal(t, "Hello, World!\n", string(output))

	require.Equal(t, 1, ack.acks)
	require.Equal(t, 0, ack.nacks)
}

func TestProcessTimeLimitDoesNotBlockSiblingTestCases(t *testing.T) {
	runner := &fakeRunner{outcomes: []internal.ExecutionOutcome{
		{Output: "", Status: statuses.TimeLimitExceeded, TimeMillis: 500, MemoryKiB: 2048},
		{Output: "ok\n", Status: statuses.Accepted, TimeMillis: 10, MemoryKiB: 1024},
	}}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(testCase("loop", "", ""), testCase("trivial", "", "ok")),
		Ack: ack,
	})

	require.Equal(t, 2, runner.callCount())
	require.Len(t, pub.resultMsgs, 1)
	res := pub.resultMsgs[0]
	require.Equal(t, statuses.TimeLimitExceeded, res.Status)
	require.Len(t, res.Results, 2)
	require.Equal(t, "loop", res.Results[0].TestCaseID)
	require.Equal(t, statuses.TimeLimitExceeded, res.Results[0].Status)
	require.Equal(t, "trivial", res.Results[1].TestCaseID)
	require.Equal(t, statuses.Passed, res.Results[1].Status)
	require.InDelta(t, 0.5, res.TimeTaken, 1e-9)
}

func TestProcessUndecodableCodeIsDroppedWithoutResult(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	job := submission(testCase("1", "", "ok"))
	job.Code = "!!! not base64 !!!"
	proc.Process(context.Background(), worker.Envelope{Msg: job, Ack: ack})

	require.Equal(t, 0, runner.callCount())
	require.Empty(t, pub.resultMsgs)
	require.Equal(t, 1, ack.acks)
	require.Equal(t, 0, ack.nacks)
}

func TestProcessBadTestInputFailsOnlyThatTestCase(t *testing.T) {
	runner := &fakeRunner{outcomes: []internal.ExecutionOutcome{
		{Output: "ok\n", Status: statuses.Accepted, TimeMillis: 10, MemoryKiB: 1024},
	}}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	bad := testCase("bad", "", "")
	bad.Input = "%%%"
	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(bad, testCase("good", "", "ok")),
		Ack: ack,
	})

	// the sandbox only ran for the good test case
	require.Equal(t, 1, runner.callCount())
	require.Len(t, pub.resultMsgs, 1)
	res := pub.resultMsgs[0]
	require.Equal(t, statuses.CompilationError, res.Status)
	require.Len(t, res.Results, 2)
	require.Equal(t, statuses.CompilationError, res.Results[0].Status)
	require.Equal(t, statuses.Passed, res.Results[1].Status)
	require.Equal(t, 1, ack.acks)
}

func TestProcessRunnerFailureFailsOnlyThatTestCase(t *testing.T) {
	runner := &fakeRunner{
		errs: []error{errors.New("container runtime unreachable")},
		outcomes: []internal.ExecutionOutcome{
			{},
			{Output: "ok\n", Status: statuses.Accepted, TimeMillis: 10, MemoryKiB: 1024},
		},
	}
	pub := &fakePublisher{}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(testCase("a", "", ""), testCase("b", "", "ok")),
		Ack: ack,
	})

	require.Equal(t, 2, runner.callCount())
	res := pub.resultMsgs[0]
	require.Equal(t, statuses.CompilationError, res.Results[0].Status)
	require.Equal(t, statuses.Passed, res.Results[1].Status)
}

func TestProcessResultPublishFailureRequeues(t *testing.T) {
	runner := &fakeRunner{outcomes: []internal.ExecutionOutcome{
		{Output: "ok\n", Status: statuses.Accepted, TimeMillis: 10, MemoryKiB: 1024},
	}}
	pub := &fakePublisher{resultErr: errors.New("broker gone")}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(testCase("1", "", "ok")),
		Ack: ack,
	})

	require.Equal(t, 0, ack.acks)
	require.Equal(t, 1, ack.nacks)
	require.Equal(t, []bool{true}, ack.requeues)
}

func TestProcessStatusPublishFailureIsBestEffort(t *testing.T) {
	runner := &fakeRunner{outcomes: []internal.ExecutionOutcome{
		{Output: "ok\n", Status: statuses.Accepted, TimeMillis: 10, MemoryKiB: 1024},
	}}
	pub := &fakePublisher{statusErr: errors.New("broker hiccup")}
	ack := &fakeAck{}
	proc := worker.NewProcessor(runner, pub, discardLogger())

	proc.Process(context.Background(), worker.Envelope{
		Msg: submission(testCase("1", "", "ok")),
		Ack: ack,
	})

	require.Len(t, pub.resultMsgs, 1)
	require.Equal(t, statuses.Passed, pub.resultMsgs[0].Status)
	require.Equal(t, 1, ack.acks)
}
