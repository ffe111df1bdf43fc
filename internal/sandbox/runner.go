package sandbox

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/arenaoj/judge/internal"
	"github.com/arenaoj/judge/internal/languages"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

// Runner executes one (language, code, input) triple under a hard time
// limit and memory ceiling, producing exactly one ExecutionOutcome.
// Sandbox-level failures (compile error, non-zero exit, timeout, over
// memory) are statuses, not errors; a returned error means the runner
// itself could not run the code.
type Runner struct {
	engine Engine
	langs  *languages.Registry
	logger *slog.Logger
}

func NewRunner(engine Engine, langs *languages.Registry, logger *slog.Logger) *Runner {
	return &Runner{engine: engine, langs: langs, logger: logger}
}

type execDone struct {
	exitCode int
	err      error
}

func (r *Runner) Run(
	ctx context.Context,
	langID string,
	code []byte,
	input []byte,
	timeLimit time.Duration,
	memoryLimitBytes int64,
) (internal.ExecutionOutcome, error) {
	lang, err := r.langs.Get(langID)
	if err != nil {
		return internal.ExecutionOutcome{}, err
	}

	box, err := r.engine.NewBox(ctx, lang.Image, memoryLimitBytes)
	if err != nil {
		return internal.ExecutionOutcome{}, err
	}
	// teardown on every exit path, including the forced-kill one below
	defer box.Close(context.WithoutCancel(ctx))

	if err := box.AddFile(ctx, lang.SourceFile, code); err != nil {
		return internal.ExecutionOutcome{}, err
	}

	if lang.CompileCmd != nil {
		var out bytes.Buffer
		exitCode, err := box.Exec(ctx, lang.CompileCmd, nil, &out)
		if err != nil {
			return internal.ExecutionOutcome{}, err
		}
		if exitCode != 0 {
			r.logger.Debug("compilation failed",
				slog.String("language", langID), slog.Int("exit_code", exitCode))
			return internal.ExecutionOutcome{
				Output: out.String(),
				Status: statuses.CompilationError,
			}, nil
		}
	}

	output := &lockedBuffer{}
	monitor := startMemoryMonitor(ctx, box, monitorLifetime(timeLimit))

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	done := make(chan execDone, 1)
	go func() {
		exitCode, err := box.Exec(execCtx, lang.ExecuteCmd, input, output)
		done <- execDone{exitCode: exitCode, err: err}
	}()

	timer := time.NewTimer(timeLimit)
	defer timer.Stop()

	select {
	case <-timer.C:
		// kill the container to unblock the drain, keep what was captured
		cancel()
		_ = box.Close(context.WithoutCancel(ctx))
		monitor.stop()
		return internal.ExecutionOutcome{
			Output:     output.String(),
			Status:     statuses.TimeLimitExceeded,
			TimeMillis: timeLimit.Milliseconds(),
			MemoryKiB:  monitor.peakKiB(),
		}, nil

	case d := <-done:
		elapsed := time.Since(start)
		monitor.stop()
		if d.err != nil {
			return internal.ExecutionOutcome{}, d.err
		}
		outcome := internal.ExecutionOutcome{
			Output:     output.String(),
			TimeMillis: elapsed.Milliseconds(),
			MemoryKiB:  monitor.peakKiB(),
		}
		switch {
		case d.exitCode != 0:
			outcome.Status = statuses.RuntimeError
		case outcome.MemoryKiB*1024 > memoryLimitBytes:
			outcome.Status = statuses.MemoryLimitExceeded
		default:
			outcome.Status = statuses.Accepted
		}
		return outcome, nil
	}
}

// lockedBuffer lets the runner read partial output while the drain
// goroutine is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
