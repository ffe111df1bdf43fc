// Seed publishes one sample submission to the submission queue, for manual
// end-to-end runs against a local broker.
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/arenaoj/judge/internal/broker"
	"github.com/arenaoj/judge/internal/environment"
	"github.com/arenaoj/judge/pkg/messaging"
)

// inputs above this size get zstd-compressed on the wire
const compressThreshold = 4 * 1024

func main() {
	cfg := environment.ReadEnvConfig()

	log.Println("Connecting to RabbitMQ...")
	conn, err := amqp.Dial(cfg.AMQPConnString)
	panicOnError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	panicOnError(err)
	defer ch.Close()

	panicOnError(broker.Declare(ch))

	input := []byte("")
	msg := messaging.SubmissionMessage{
		SubmissionID: time.Now().Unix(),
		Language:     "PYTHON",
		Code:         messaging.EncodePayload([]byte("print('Hello, World!')"), false),
		TimeLimit:    2.0,
		MemoryLimit:  128,
		TestCases: []messaging.TestCaseMessage{
			{
				ID:             "1",
				Input:          messaging.EncodePayload(input, len(input) > compressThreshold),
				ExpectedOutput: messaging.EncodePayload([]byte("Hello, World!"), false),
			},
		},
	}

	body, err := json.Marshal(msg)
	panicOnError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err = ch.PublishWithContext(ctx,
		broker.Exchange, broker.RoutingKeySubmission, false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
	panicOnError(err)

	log.Printf("Published submission %d", msg.SubmissionID)
}

func panicOnError(err error) {
	if err != nil {
		log.Panic(err)
	}
}
