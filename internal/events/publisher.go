package events

import (
	"context"
	"encoding/json"
	"time"

	"quoting/internal/logger"

	"github.com/segmentio/kafka-go"
)

const Topic = "quote-events"

const (
	TypeQuoteCreated    = "quote.created"
	TypeQuoteDispatched = "quote.dispatched"
	TypeQuoteFailed     = "quote.failed"
	TypeQuoteSkipped    = "quote.skipped"
)

type Event struct {
	Type      string    `json:"type"`
	QuoteID   string    `json:"quote_id"`
	Cin7ID    string    `json:"cin7_id,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits quote lifecycle events. Publishing is best-effort: a broker
// outage must never fail the request path.
type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewPublisher(brokers string, logger *logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}
}

func (p *Publisher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.QuoteID),
		Value: value,
	}); err != nil {
		p.logger.Error("Failed to publish %s for quote %s: %v", event.Type, event.QuoteID, err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
