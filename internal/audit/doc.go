// Package audit implements async event dispatching for session events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, AMQP, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with id, type, user, session, request id and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does not decide which
// events to emit; that belongs to the Engine.
//
// Token strings must never be placed in an Event.
package audit
