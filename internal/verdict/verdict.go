// Package verdict turns sandbox outcomes into per-test-case verdicts and
// collapses those into one submission verdict. Everything here is pure.
package verdict

import (
	"strings"

	"github.com/arenaoj/judge/internal"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

// Judge produces the verdict for a single test case. Any non-ACCEPTED
// sandbox status passes through unchanged; an accepted execution is judged
// by comparing output against the expected answer, ignoring leading and
// trailing whitespace.
func Judge(testCaseID string, outcome internal.ExecutionOutcome, expected []byte) internal.TestCaseVerdict {
	v := internal.TestCaseVerdict{
		TestCaseID: testCaseID,
		Status:     outcome.Status,
		Output:     outcome.Output,
		TimeSec:    float64(outcome.TimeMillis) / 1000.0,
		MemoryMB:   float64(outcome.MemoryKiB) / 1024.0,
	}
	if outcome.Status != statuses.Accepted {
		return v
	}
	if strings.TrimSpace(outcome.Output) == strings.TrimSpace(string(expected)) {
		v.Status = statuses.Passed
	} else {
		v.Status = statuses.WrongAnswer
	}
	return v
}

// Aggregate collapses the ordered test-case verdicts into the submission
// verdict: highest-priority status, max time, max memory. An empty list
// yields COMPILATION_ERROR, meaning nothing could be verified.
func Aggregate(submissionID int64, verdicts []internal.TestCaseVerdict) internal.SubmissionVerdict {
	if len(verdicts) == 0 {
		return internal.SubmissionVerdict{
			SubmissionID: submissionID,
			Status:       statuses.CompilationError,
			TestCases:    []internal.TestCaseVerdict{},
		}
	}
	overall := internal.SubmissionVerdict{
		SubmissionID: submissionID,
		Status:       statuses.Passed,
		TestCases:    verdicts,
	}
	for _, v := range verdicts {
		overall.Status = statuses.Worst(overall.Status, v.Status)
		if v.TimeSec > overall.TimeSec {
			overall.TimeSec = v.TimeSec
		}
		if v.MemoryMB > overall.MemoryMB {
			overall.MemoryMB = v.MemoryMB
		}
	}
	return overall
}
