package sessionguard

import (
	"io"

	internalaudit "github.com/MrEthical07/sessionguard/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one session audit record. It never contains token strings.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink drops every event.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// AMQPSink publishes events to a RabbitMQ topic exchange.
type AMQPSink = internalaudit.AMQPSink

// AMQPSinkConfig configures DialAMQPSink.
type AMQPSinkConfig = internalaudit.AMQPConfig

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// DialAMQPSink connects to a broker and declares cfg.Exchange as a durable
// topic exchange. Close the sink after the engine.
func DialAMQPSink(url string, cfg AMQPSinkConfig, log zerolog.Logger) (*AMQPSink, error) {
	return internalaudit.DialAMQP(url, cfg, log)
}
