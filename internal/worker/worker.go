// Package worker processes one submission end to end: it drives the
// sandbox across the submission's test cases, judges the outcomes and
// publishes the status and result notifications.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenaoj/judge/internal"
	"github.com/arenaoj/judge/internal/publish"
	"github.com/arenaoj/judge/internal/trim"
	"github.com/arenaoj/judge/internal/verdict"
	"github.com/arenaoj/judge/pkg/messaging"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

// Acknowledger settles the inbound delivery a submission arrived on.
// Satisfied by AMQP deliveries through the broker package's adapter.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Envelope is one dequeued submission together with its delivery handle.
type Envelope struct {
	Msg messaging.SubmissionMessage
	Ack Acknowledger
}

// SandboxRunner is the sandbox surface the processor needs.
type SandboxRunner interface {
	Run(ctx context.Context, langID string, code, input []byte,
		timeLimit time.Duration, memoryLimitBytes int64) (internal.ExecutionOutcome, error)
}

type Processor struct {
	runner SandboxRunner
	pub    publish.Publisher
	logger *slog.Logger
}

func NewProcessor(runner SandboxRunner, pub publish.Publisher, logger *slog.Logger) *Processor {
	return &Processor{runner: runner, pub: pub, logger: logger}
}

// Process handles one submission fully before returning. Test cases run
// strictly sequentially; one failing test case never aborts its siblings.
func (p *Processor) Process(ctx context.Context, env Envelope) {
	job := env.Msg
	logger := p.logger.With(slog.Int64("submission_id", job.SubmissionID))
	logger.Info("processing submission",
		slog.String("language", job.Language), slog.Int("test_cases", len(job.TestCases)))

	// best-effort: a lost status update must not abort processing
	err := p.pub.PublishStatus(ctx, messaging.StatusMessage{
		SubmissionID: job.SubmissionID,
		Status:       statuses.Running,
	})
	if err != nil {
		logger.Warn("failed to publish running status", slog.Any("error", err))
	}

	code, err := messaging.DecodePayload(job.Code)
	if err != nil {
		// unrecoverable malformed input: drop the submission entirely,
		// no terminal result is ever published for it
		logger.Error("failed to decode submission code, dropping", slog.Any("error", err))
		if err := env.Ack.Ack(); err != nil {
			logger.Error("failed to ack dropped submission", slog.Any("error", err))
		}
		return
	}

	timeLimit := time.Duration(job.TimeLimit * float64(time.Second))
	memoryLimitBytes := job.MemoryLimit * 1024 * 1024

	verdicts := make([]internal.TestCaseVerdict, 0, len(job.TestCases))
	for _, tc := range job.TestCases {
		verdicts = append(verdicts, p.runTestCase(ctx, logger, job, tc, code, timeLimit, memoryLimitBytes))
	}

	overall := verdict.Aggregate(job.SubmissionID, verdicts)
	logger.Info("submission judged",
		slog.String("status", string(overall.Status)),
		slog.Float64("time_sec", overall.TimeSec),
		slog.Float64("memory_mb", overall.MemoryMB))

	if err := p.pub.PublishResult(ctx, resultMessage(overall)); err != nil {
		// requeue for redelivery; re-execution of the whole submission is
		// the accepted cost of the pipeline not being idempotent
		logger.Error("failed to publish result, requeueing", slog.Any("error", err))
		if err := env.Ack.Nack(true); err != nil {
			logger.Error("failed to nack submission", slog.Any("error", err))
		}
		return
	}
	if err := env.Ack.Ack(); err != nil {
		logger.Error("failed to ack submission", slog.Any("error", err))
	}
}

func (p *Processor) runTestCase(
	ctx context.Context,
	logger *slog.Logger,
	job messaging.SubmissionMessage,
	tc messaging.TestCaseMessage,
	code []byte,
	timeLimit time.Duration,
	memoryLimitBytes int64,
) internal.TestCaseVerdict {
	logger = logger.With(slog.String("test_case_id", tc.ID))

	input, err := messaging.DecodePayload(tc.Input)
	if err != nil {
		logger.Error("failed to decode test input", slog.Any("error", err))
		return errorVerdict(tc.ID, fmt.Sprintf("failed to decode test input: %v", err))
	}

	outcome, err := p.runner.Run(ctx, job.Language, code, input, timeLimit, memoryLimitBytes)
	if err != nil {
		// runner failures (unsupported language, container runtime down)
		// fail this test case only, never the whole submission
		logger.Error("sandbox execution failed", slog.Any("error", err))
		return errorVerdict(tc.ID, fmt.Sprintf("execution failed: %v", err))
	}

	expected, err := messaging.DecodePayload(tc.ExpectedOutput)
	if err != nil {
		logger.Error("failed to decode expected output", slog.Any("error", err))
		return errorVerdict(tc.ID, fmt.Sprintf("failed to decode expected output: %v", err))
	}

	v := verdict.Judge(tc.ID, outcome, expected)
	logger.Debug("test case judged",
		slog.String("status", string(v.Status)),
		slog.Int64("time_millis", outcome.TimeMillis),
		slog.Int64("memory_kib", outcome.MemoryKiB))
	return v
}

func errorVerdict(testCaseID string, diagnostic string) internal.TestCaseVerdict {
	outcome := internal.ExecutionOutcome{
		Output: diagnostic,
		Status: statuses.CompilationError,
	}
	return verdict.Judge(testCaseID, outcome, nil)
}

func resultMessage(v internal.SubmissionVerdict) messaging.ResultMessage {
	msg := messaging.ResultMessage{
		SubmissionID: v.SubmissionID,
		Status:       v.Status,
		TimeTaken:    v.TimeSec,
		MemoryUsed:   v.MemoryMB,
		Results:      make([]messaging.TestCaseResultMessage, 0, len(v.TestCases)),
	}
	for _, tc := range v.TestCases {
		msg.Results = append(msg.Results, messaging.TestCaseResultMessage{
			TestCaseID: tc.TestCaseID,
			Status:     tc.Status,
			Output:     messaging.EncodePayload([]byte(trim.Output(tc.Output)), false),
			TimeTaken:  tc.TimeSec,
			MemoryUsed: tc.MemoryMB,
		})
	}
	return msg
}
