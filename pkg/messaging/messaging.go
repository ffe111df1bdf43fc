// Package messaging holds the wire schemas shared with the backend that
// enqueues submissions and consumes status/result notifications. Code and
// test-case payloads travel transport-encoded; see codec.go.
package messaging

import "github.com/arenaoj/judge/pkg/messaging/statuses"

type TestCaseMessage struct {
	ID             string `json:"id"`
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

// SubmissionMessage is one unit of work as it arrives on the submission
// queue. TimeLimit is in seconds, MemoryLimit in megabytes.
type SubmissionMessage struct {
	SubmissionID int64             `json:"submissionId"`
	Language     string            `json:"language"`
	Code         string            `json:"code"`
	TimeLimit    float64           `json:"timeLimit"`
	MemoryLimit  int64             `json:"memoryLimit"`
	TestCases    []TestCaseMessage `json:"testCases"`
}

// StatusMessage is published when a worker begins executing a submission.
type StatusMessage struct {
	SubmissionID int64           `json:"submissionId"`
	Status       statuses.Status `json:"status"`
}

type TestCaseResultMessage struct {
	TestCaseID string          `json:"testCaseId"`
	Status     statuses.Status `json:"status"`
	Output     string          `json:"output"`
	TimeTaken  float64         `json:"timeTaken"`
	MemoryUsed float64         `json:"memoryUsed"`
}

// ResultMessage is the terminal verdict for a submission. TimeTaken is in
// seconds and MemoryUsed in megabytes, both maxima across test cases. The
// results list preserves the order of the submission's test cases.
type ResultMessage struct {
	SubmissionID int64                   `json:"submissionId"`
	Status       statuses.Status         `json:"status"`
	TimeTaken    float64                 `json:"timeTaken"`
	MemoryUsed   float64                 `json:"memoryUsed"`
	Results      []TestCaseResultMessage `json:"results"`
}
