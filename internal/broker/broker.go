// Package broker owns the AMQP topology and the inbound consumer. A
// rejected or expired submission message dead-letters into the retry queue,
// waits out a fixed TTL and is routed back for another attempt; messages an
// operator must inspect by hand land on the failed queue.
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arenaoj/judge/internal/dispatch"
)

const (
	Exchange      = "judge"
	RetryExchange = "judge.retry"

	SubmissionQueue = "submission.new"
	RetryQueue      = "submission.retry"
	FailedQueue     = "submission.failed"

	RoutingKeySubmission = "submission.new"
	RoutingKeyStatus     = "submission.status"
	RoutingKeyResult     = "submission.result"

	retryTTLMillis = 30000
)

// Declare sets up the exchanges, queues and bindings. Declarations are
// idempotent, so every worker declares on startup.
func Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", Exchange, err)
	}
	if err := ch.ExchangeDeclare(RetryExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", RetryExchange, err)
	}

	_, err := ch.QueueDeclare(SubmissionQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange": RetryExchange,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", SubmissionQueue, err)
	}
	if err := ch.QueueBind(SubmissionQueue, RoutingKeySubmission, Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", SubmissionQueue, err)
	}

	_, err = ch.QueueDeclare(RetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             int32(retryTTLMillis),
		"x-dead-letter-exchange":    Exchange,
		"x-dead-letter-routing-key": RoutingKeySubmission,
	})
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", RetryQueue, err)
	}
	if err := ch.QueueBind(RetryQueue, RoutingKeySubmission, RetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", RetryQueue, err)
	}

	if _, err := ch.QueueDeclare(FailedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", FailedQueue, err)
	}

	return nil
}

// PrefetchFor sizes the consumer prefetch for a worker pool: one delivery
// per busy worker plus one per slot of the bounded job queue, so the full
// pool-plus-queue capacity can be in flight at once.
func PrefetchFor(poolSize int) int {
	return 2 * poolSize
}

// Consume starts a manually-acknowledged consumer on the submission queue,
// adapting deliveries into dispatcher messages.
func Consume(ctx context.Context, ch *amqp.Channel, prefetch int) (<-chan dispatch.Message, error) {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set channel qos: %w", err)
	}

	deliveries, err := ch.Consume(SubmissionQueue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume from %s: %w", SubmissionQueue, err)
	}

	msgs := make(chan dispatch.Message)
	go func() {
		defer close(msgs)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case msgs <- dispatch.Message{Body: d.Body, Ack: deliveryAck{d: d}}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return msgs, nil
}

// deliveryAck adapts an AMQP delivery to the worker's acknowledger.
type deliveryAck struct {
	d amqp.Delivery
}

func (a deliveryAck) Ack() error {
	return a.d.Ack(false)
}

func (a deliveryAck) Nack(requeue bool) error {
	return a.d.Nack(false, requeue)
}
