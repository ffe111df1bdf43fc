// Package sqspub sends notifications to SQS queues for AWS deployments.
package sqspub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/arenaoj/judge/pkg/messaging"
)

type Publisher struct {
	client         *sqs.Client
	statusQueueURL string
	resultQueueURL string
}

func New(client *sqs.Client, statusQueueURL, resultQueueURL string) *Publisher {
	return &Publisher{
		client:         client,
		statusQueueURL: statusQueueURL,
		resultQueueURL: resultQueueURL,
	}
}

func (p *Publisher) PublishStatus(ctx context.Context, msg messaging.StatusMessage) error {
	return p.send(ctx, p.statusQueueURL, msg)
}

func (p *Publisher) PublishResult(ctx context.Context, msg messaging.ResultMessage) error {
	return p.send(ctx, p.resultQueueURL, msg)
}

func (p *Publisher) send(ctx context.Context, queueURL string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to %s: %w", queueURL, err)
	}
	return nil
}
