package audit

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Event is the canonical session audit record shared by the engine and sinks.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line through zerolog, keyed like
// the Event JSON tags so lines decode back into Event.
type JSONWriterSink struct {
	log zerolog.Logger
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	if w == nil {
		return &JSONWriterSink{log: zerolog.Nop()}
	}
	return &JSONWriterSink{log: zerolog.New(zerolog.SyncWriter(w))}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}
	line := s.log.Log().
		Str("id", event.ID).
		Time("timestamp", event.Timestamp).
		Str("event_type", event.EventType).
		Bool("success", event.Success)

	optional := [...]struct{ key, value string }{
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"request_id", event.RequestID},
		{"ip", event.IP},
		{"error", event.Error},
	}
	for _, f := range optional {
		if f.value != "" {
			line = line.Str(f.key, f.value)
		}
	}
	if len(event.Metadata) > 0 {
		meta := zerolog.Dict()
		for k, v := range event.Metadata {
			meta = meta.Str(k, v)
		}
		line = line.Dict("metadata", meta)
	}
	line.Send()
}

// MultiSink fans an event out to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
