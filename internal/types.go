package internal

import "github.com/arenaoj/judge/pkg/messaging/statuses"

// ExecutionOutcome is what the sandbox reports for one test-case run:
// combined stdout+stderr, a coarse status, wall time and peak memory.
// It is consumed immediately by verdict judging and discarded.
type ExecutionOutcome struct {
	Output     string
	Status     statuses.Status
	TimeMillis int64
	MemoryKiB  int64
}

type TestCaseVerdict struct {
	TestCaseID string
	Status     statuses.Status
	Output     string
	TimeSec    float64
	MemoryMB   float64
}

// SubmissionVerdict is the terminal artifact for a submission. TestCases
// has exactly the same length and order as the submission's test-case
// list; a submission is never partially reported.
type SubmissionVerdict struct {
	SubmissionID int64
	Status       statuses.Status
	TimeSec      float64
	MemoryMB     float64
	TestCases    []TestCaseVerdict
}
