// Command events tails the notification topic and prints each record, one
// JSON line per committed state transition. Useful for watching a request
// move through its lifecycle during development.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scorepass/internal/notify"
	"scorepass/internal/platform/kafka"
	"scorepass/internal/platform/kafka/consumer"
	"scorepass/internal/platform/logger"
)

type printer struct{}

func (printer) Handle(_ context.Context, msg *consumer.Message) error {
	var record notify.Record
	if err := json.Unmarshal(msg.Value, &record); err != nil {
		// Print unparseable payloads raw rather than stalling the stream.
		fmt.Printf("%s\n", msg.Value)
		return nil
	}
	fmt.Printf("%d\t%s\t%s\t%s\t%s\n",
		record.Sequence,
		record.Timestamp.Format("15:04:05.000"),
		record.Operation,
		record.EntityID,
		record.Outcome,
	)
	return nil
}

func main() {
	var (
		brokers = flag.String("brokers", envOr("SCOREPASS_KAFKA_BROKERS", "localhost:9092"), "kafka bootstrap brokers")
		group   = flag.String("group", "scorepass-events-cli", "consumer group ID")
		fromEnd = flag.Bool("tail", false, "start from the end of the topic instead of the beginning")
	)
	flag.Parse()

	log := logger.New()

	cfg := kafka.DefaultConsumerConfig()
	cfg.Brokers = *brokers
	cfg.GroupID = *group
	cfg.Topics = []string{kafka.TopicNotifications}
	if *fromEnd {
		cfg.AutoOffsetReset = "latest"
	}

	c, err := consumer.New(consumer.Config(cfg), printer{}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create consumer: %v\n", err)
		os.Exit(1)
	}
	c.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if err := c.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close consumer: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
