// Package termpub prints notifications to the terminal for local runs.
package termpub

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/arenaoj/judge/pkg/messaging"
	"github.com/arenaoj/judge/pkg/messaging/statuses"
)

type Publisher struct{}

func New() *Publisher { return &Publisher{} }

func (p *Publisher) PublishStatus(_ context.Context, msg messaging.StatusMessage) error {
	fmt.Printf("== submission %d: %s ==\n", msg.SubmissionID, msg.Status)
	return nil
}

func (p *Publisher) PublishResult(_ context.Context, msg messaging.ResultMessage) error {
	fmt.Printf("== submission %d finished: %s (%.3fs, %.1fMB) ==\n",
		msg.SubmissionID, colored(msg.Status), msg.TimeTaken, msg.MemoryUsed)
	for _, res := range msg.Results {
		fmt.Printf("  test %s: %s (%.3fs, %.1fMB)\n",
			res.TestCaseID, colored(res.Status), res.TimeTaken, res.MemoryUsed)
	}
	return nil
}

func colored(s statuses.Status) string {
	switch s {
	case statuses.Passed:
		return color.GreenString(string(s))
	case statuses.WrongAnswer:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
