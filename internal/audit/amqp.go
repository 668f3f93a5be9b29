package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *amqp.Channel used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPConfig describes where audit events are published.
type AMQPConfig struct {
	Exchange string
	// RoutingPrefix is joined with the event type, e.g. "session.login_success".
	RoutingPrefix  string
	PublishTimeout time.Duration
}

// AMQPSink publishes each event as a persistent JSON message on a topic
// exchange. Publish errors are logged and the event is dropped.
type AMQPSink struct {
	pub    Publisher
	cfg    AMQPConfig
	log    zerolog.Logger
	closer func() error

	mu     sync.Mutex
	failed uint64
}

// NewAMQPSink wraps an existing publisher.
func NewAMQPSink(pub Publisher, cfg AMQPConfig, log zerolog.Logger) *AMQPSink {
	if cfg.RoutingPrefix == "" {
		cfg.RoutingPrefix = "session"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &AMQPSink{pub: pub, cfg: cfg, log: log}
}

// DialAMQP connects to url, declares a durable topic exchange and returns a
// sink that owns the connection.
func DialAMQP(url string, cfg AMQPConfig, log zerolog.Logger) (*AMQPSink, error) {
	if cfg.Exchange == "" {
		return nil, errors.New("audit: amqp exchange is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("audit: amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("audit: declare exchange %q: %w", cfg.Exchange, err)
	}

	sink := NewAMQPSink(ch, cfg, log)
	sink.closer = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return sink, nil
}

func (s *AMQPSink) Emit(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.cfg.PublishTimeout)
	defer cancel()

	err = s.pub.PublishWithContext(pubCtx, s.cfg.Exchange, s.cfg.RoutingPrefix+"."+event.EventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		s.mu.Lock()
		s.failed++
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("event_type", event.EventType).Msg("audit publish failed")
	}
}

// Failed returns how many events could not be published.
func (s *AMQPSink) Failed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Close releases the connection opened by DialAMQP. It is a no-op for sinks
// built with NewAMQPSink.
func (s *AMQPSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
