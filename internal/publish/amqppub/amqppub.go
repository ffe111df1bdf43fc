// Package amqppub publishes notifications to the judge direct exchange.
package amqppub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arenaoj/judge/internal/broker"
	"github.com/arenaoj/judge/pkg/messaging"
)

const publishTimeout = 30 * time.Second

type Publisher struct {
	ch *amqp.Channel
}

func New(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) PublishStatus(ctx context.Context, msg messaging.StatusMessage) error {
	return p.publish(ctx, broker.RoutingKeyStatus, msg)
}

func (p *Publisher) PublishResult(ctx context.Context, msg messaging.ResultMessage) error {
	return p.publish(ctx, broker.RoutingKeyResult, msg)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx,
		broker.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}
	return nil
}
