// Package natspub streams notifications over NATS subjects, an alternative
// to the AMQP transport for deployments already running NATS.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/arenaoj/judge/pkg/messaging"
)

const (
	StatusSubject = "submission.status"
	ResultSubject = "submission.result"
)

type Publisher struct {
	nc *nats.Conn
}

func New(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

func (p *Publisher) PublishStatus(_ context.Context, msg messaging.StatusMessage) error {
	return p.publish(StatusSubject, msg)
}

func (p *Publisher) PublishResult(_ context.Context, msg messaging.ResultMessage) error {
	return p.publish(ResultSubject, msg)
}

func (p *Publisher) publish(subject string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}
	if err := p.nc.Publish(subject, body); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}
