package environment

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type EnvConfig struct {
	AMQPConnString string
	PoolSize       int
	LanguagesFile  string

	// Notify selects the notification transport: amqp, nats, sqs or term.
	Notify string

	NatsURL           string
	SqsStatusQueueURL string
	SqsResultQueueURL string
}

const defaultPoolSize = 4

func ReadEnvConfig() *EnvConfig {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", slog.Any("error", err))
	}

	result := &EnvConfig{}

	rmqHost := getenv("RMQ_HOST", "localhost")
	rmqPort := getenv("RMQ_PORT", "5672")
	rmqUser := getenv("RMQ_USER", "guest")
	rmqPass := getenv("RMQ_PASS", "guest")

	result.AMQPConnString = fmt.Sprintf(
		`amqp://%s:%s@%s:%s/`,
		rmqUser, rmqPass, rmqHost, rmqPort)

	result.PoolSize = defaultPoolSize
	if v := os.Getenv("POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Warn("ignoring invalid POOL_SIZE", slog.String("value", v))
		} else {
			result.PoolSize = n
		}
	}

	result.LanguagesFile = os.Getenv("LANG_CONFIG")
	result.Notify = getenv("NOTIFY", "amqp")
	result.NatsURL = getenv("NATS_URL", "nats://localhost:4222")
	result.SqsStatusQueueURL = os.Getenv("SQS_STATUS_QUEUE_URL")
	result.SqsResultQueueURL = os.Getenv("SQS_RESULT_QUEUE_URL")

	return result
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
