// Package publish abstracts the outbound notification transport. One
// implementation exists per broker flavour; the worker only sees this
// interface.
package publish

import (
	"context"

	"github.com/arenaoj/judge/pkg/messaging"
)

type Publisher interface {
	// PublishStatus emits a running-status update. Callers treat failures
	// as best-effort telemetry.
	PublishStatus(ctx context.Context, msg messaging.StatusMessage) error
	// PublishResult emits the terminal verdict. A failure here makes the
	// worker requeue the submission.
	PublishResult(ctx context.Context, msg messaging.ResultMessage) error
}
