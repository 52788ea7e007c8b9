package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "inboxd.events"

// Publisher delivers envelopes under a routing key.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

type rmqClient struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewAMQP dials url and declares a durable topic exchange.
func NewAMQP(url, exchange string, logger *slog.Logger) (Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}

	return &rmqClient{
		conn:     conn,
		exchange: exchange,
		log:      logger,
	}, nil
}

func (r *rmqClient) Publish(ctx context.Context, key string, env Envelope) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: open channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}
	msgID := env.Meta.ID
	if msgID == "" {
		msgID = uuid.NewString()
	}
	ts := env.Meta.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	err = ch.PublishWithContext(ctx, r.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    msgID,
		Type:         env.Meta.Type,
		AppId:        Producer,
		Timestamp:    ts,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", key, err)
	}
	r.log.Debug("published", slog.String("key", key), slog.String("exchange", r.exchange))
	return nil
}

func (r *rmqClient) Close() error {
	return r.conn.Close()
}

// Nop discards every envelope. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, Envelope) error { return nil }
func (Nop) Close() error                                    { return nil }

// Published is one envelope captured by a Recorder.
type Published struct {
	Key      string
	Envelope Envelope
}

// Recorder keeps every published envelope in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Published
	// Err, when set, is returned from every Publish.
	Err error
}

func (r *Recorder) Publish(_ context.Context, key string, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.msgs = append(r.msgs, Published{Key: key, Envelope: env})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.msgs...)
}

// Emit publishes env for kind and logs, but does not return, any failure.
// State changes are already committed when events are emitted.
func Emit(ctx context.Context, p Publisher, logger *slog.Logger, kind Kind, env Envelope) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, kind.RoutingKey(), env); err != nil && logger != nil {
		logger.Warn("event publish failed",
			slog.String("type", env.Meta.Type),
			slog.String("id", env.Meta.ID),
			slog.Any("error", err))
	}
}
