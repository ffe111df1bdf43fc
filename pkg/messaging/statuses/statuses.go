package statuses

// Status is the verdict enumeration shared by the per-test-case and the
// submission level, plus the transient RUNNING notification state.
type Status string

const (
	Running Status = "RUNNING"

	// Accepted means the sandboxed execution itself succeeded. Correctness
	// is judged afterwards, so Accepted never appears in a published verdict.
	Accepted Status = "ACCEPTED"

	Passed              Status = "PASSED"
	WrongAnswer         Status = "WRONG_ANSWER"
	MemoryLimitExceeded Status = "MEMORY_LIMIT_EXCEEDED"
	TimeLimitExceeded   Status = "TIME_LIMIT_EXCEEDED"
	RuntimeError        Status = "RUNTIME_ERROR"
	CompilationError    Status = "COMPILATION_ERROR"
)

// Priority orders verdict statuses for aggregation. The highest-priority
// status among the test-case verdicts becomes the submission status.
func Priority(s Status) int {
	switch s {
	case CompilationError:
		return 6
	case RuntimeError:
		return 5
	case TimeLimitExceeded:
		return 4
	case MemoryLimitExceeded:
		return 3
	case WrongAnswer:
		return 2
	case Passed:
		return 1
	default:
		return 0
	}
}

// Worst returns whichever of the two statuses has the higher priority.
func Worst(a, b Status) Status {
	if Priority(b) > Priority(a) {
		return b
	}
	return a
}
