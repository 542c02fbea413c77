package mykafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/moto_shop/pkg/logging"
	"github.com/segmentio/kafka-go"
)

type Handler func(ctx context.Context, msg kafka.Message) error

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks a handler error that retrying cannot fix. Run logs such a
// message and commits past it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader messageReader
	topic  string

	// Attempts bounds how many times one message is handled before Run
	// gives up on it.
	Attempts int
	Backoff  time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, topic: topic, Attempts: 5, Backoff: 500 * time.Millisecond}, nil
}

// Run fetches until ctx is done. Offsets are committed only after handle
// succeeds or fails permanently. When retries run out Run returns the error
// with the offset uncommitted, so the group redelivers the message after a
// restart.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	l := logging.FromContext(ctx).With("topic", c.topic)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("kafka: fetch failed: %w", err)
		}

		if err := c.handle(ctx, handle, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !IsPermanent(err) {
				l.Error("consume_failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
				return fmt.Errorf("kafka: partition %d offset %d: %w", msg.Partition, msg.Offset, err)
			}
			l.Error("consume_skipped", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			l.Error("commit_failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handle Handler, msg kafka.Message) error {
	l := logging.FromContext(ctx)
	attempts := max(c.Attempts, 1)
	wait := c.Backoff
	for attempt := 1; ; attempt++ {
		err := handle(ctx, msg)
		if err == nil || IsPermanent(err) || attempt >= attempts {
			return err
		}
		l.Warn("consume_retry", "topic", c.topic, "offset", msg.Offset, "attempt", attempt, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		wait *= 2
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
