// Package dispatch bridges the inbound submission stream to a fixed pool
// of processors through one bounded queue. The queue's capacity equals the
// pool size; a full queue blocks the dispatcher and is the system's sole
// backpressure mechanism.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"

	"github.com/arenaoj/judge/internal/worker"
	"github.com/arenaoj/judge/pkg/messaging"
)

// Message is one raw inbound delivery plus its acknowledgment handle.
type Message struct {
	Body []byte
	Ack  worker.Acknowledger
}

// recentCap bounds the set of submission ids kept for duplicate-redelivery
// detection; redeliveries only get a warning log, never different handling.
const recentCap = 1024

type Dispatcher struct {
	poolSize int
	proc     *worker.Processor
	logger   *slog.Logger

	recent      mapset.Set[int64]
	recentOrder []int64
}

func New(poolSize int, proc *worker.Processor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		poolSize: poolSize,
		proc:     proc,
		logger:   logger,
		recent:   mapset.NewSet[int64](),
	}
}

// Run consumes msgs until the channel closes or ctx is cancelled. It holds
// no per-submission state beyond the duplicate log set; parsed jobs are
// handed to whichever processor frees up first.
func (d *Dispatcher) Run(ctx context.Context, msgs <-chan Message) error {
	jobs := make(chan worker.Envelope, d.poolSize)

	grp, grpCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.poolSize; i++ {
		workerID := i
		grp.Go(func() error {
			logger := d.logger.With(slog.Int("worker_id", workerID))
			logger.Debug("worker started")
			for env := range jobs {
				d.proc.Process(grpCtx, env)
			}
			logger.Debug("worker stopped")
			return nil
		})
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-msgs:
			if !ok {
				break loop
			}
			d.handle(ctx, msg, jobs)
		}
	}

	close(jobs)
	return grp.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, msg Message, jobs chan<- worker.Envelope) {
	var job messaging.SubmissionMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		// a malformed message can never become valid: ack it away
		d.logger.Error("dropping malformed submission message", slog.Any("error", err))
		if err := msg.Ack.Ack(); err != nil {
			d.logger.Error("failed to ack malformed message", slog.Any("error", err))
		}
		return
	}

	d.noteSubmission(job.SubmissionID)

	select {
	case jobs <- worker.Envelope{Msg: job, Ack: msg.Ack}:
	case <-ctx.Done():
	}
}

func (d *Dispatcher) noteSubmission(id int64) {
	if !d.recent.Add(id) {
		d.logger.Warn("duplicate redelivery of submission", slog.Int64("submission_id", id))
		return
	}
	d.recentOrder = append(d.recentOrder, id)
	if len(d.recentOrder) > recentCap {
		d.recent.Remove(d.recentOrder[0])
		d.recentOrder = d.recentOrder[1:]
	}
}
