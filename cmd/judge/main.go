package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/lmittmann/tint"
	"github.com/nats-io/nats.go"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/urfave/cli/v3"

	"github.com/arenaoj/judge/internal/broker"
	"github.com/arenaoj/judge/internal/dispatch"
	"github.com/arenaoj/judge/internal/environment"
	"github.com/arenaoj/judge/internal/languages"
	"github.com/arenaoj/judge/internal/publish"
	"github.com/arenaoj/judge/internal/publish/amqppub"
	"github.com/arenaoj/judge/internal/publish/natspub"
	"github.com/arenaoj/judge/internal/publish/sqspub"
	"github.com/arenaoj/judge/internal/publish/termpub"
	"github.com/arenaoj/judge/internal/sandbox"
	"github.com/arenaoj/judge/internal/worker"
)

func main() {
	cmd := &cli.Command{
		Name:  "judge",
		Usage: "sandboxed execution worker for the submission queue",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "number of concurrent job processors (overrides POOL_SIZE)",
			},
			&cli.StringFlag{
				Name:  "notify",
				Usage: "notification transport: amqp, nats, sqs or term (overrides NOTIFY)",
			},
			&cli.StringFlag{
				Name:  "languages",
				Usage: "path to a TOML language config (overrides LANG_CONFIG)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("judge worker exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	cfg := environment.ReadEnvConfig()
	if n := cmd.Int("pool-size"); n > 0 {
		cfg.PoolSize = int(n)
	}
	if v := cmd.String("notify"); v != "" {
		cfg.Notify = v
	}
	if v := cmd.String("languages"); v != "" {
		cfg.LanguagesFile = v
	}

	conn, err := amqp.Dial(cfg.AMQPConnString)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := broker.Declare(ch); err != nil {
		return err
	}

	langs := languages.NewRegistry()
	if cfg.LanguagesFile != "" {
		if err := langs.LoadFile(cfg.LanguagesFile); err != nil {
			return err
		}
	}

	engine, err := sandbox.NewDockerEngine(logger)
	if err != nil {
		return err
	}
	runner := sandbox.NewRunner(engine, langs, logger)

	pub, err := buildPublisher(ctx, cfg, ch)
	if err != nil {
		return err
	}

	proc := worker.NewProcessor(runner, pub, logger)
	disp := dispatch.New(cfg.PoolSize, proc, logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	msgs, err := broker.Consume(ctx, ch, broker.PrefetchFor(cfg.PoolSize))
	if err != nil {
		return err
	}

	logger.Info("judge worker started",
		slog.Int("pool_size", cfg.PoolSize),
		slog.String("notify", cfg.Notify))
	return disp.Run(ctx, msgs)
}

func buildPublisher(ctx context.Context, cfg *environment.EnvConfig, ch *amqp.Channel) (publish.Publisher, error) {
	switch cfg.Notify {
	case "amqp":
		return amqppub.New(ch), nil
	case "nats":
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return natspub.New(nc), nil
	case "sqs":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return sqspub.New(sqs.NewFromConfig(awsCfg), cfg.SqsStatusQueueURL, cfg.SqsResultQueueURL), nil
	case "term":
		return termpub.New(), nil
	default:
		return nil, fmt.Errorf("unknown notify transport: %s", cfg.Notify)
	}
}
