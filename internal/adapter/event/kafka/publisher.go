package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"cygnus-loan-engine/internal/domain/event"

	kafkago "github.com/segmentio/kafka-go"
)

var _ event.Publisher = (*Publisher)(nil)

// Writer is the part of *kafkago.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	// MaxAttempts defaults to 3.
	MaxAttempts int
}

// Publisher writes loan lifecycle events as JSON, keyed by loan id so all
// events of one loan land on the same partition in order.
type Publisher struct {
	w   Writer
	log *slog.Logger
}

func NewWriter(cfg Config) *kafkago.Writer {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireAll,
		MaxAttempts:            attempts,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
}

func NewPublisher(w Writer, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{w: w, log: log}
}

func (p *Publisher) Publish(ctx context.Context, e event.Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatUint(e.LoanID, 10)),
		Value: value,
		Time:  e.At,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event for loan %d: %w", e.Type, e.LoanID, err)
	}
	p.log.DebugContext(ctx, "event published", "type", e.Type, "loan_id", e.LoanID)
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
