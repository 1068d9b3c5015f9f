// internal/events/bus.go
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/store"
)

// DocEvent is the payload delivered to trigger handlers for every committed
// document mutation. Before/After are the raw JSON bodies on each side of
// the write (nil when the document did not exist on that side).
type DocEvent struct {
	Kind       string          `json:"kind"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

// Ref returns the store ref of the mutated document.
func (ev DocEvent) Ref() store.Ref {
	return store.Ref{Collection: ev.Collection, ID: ev.ID}
}

// Handler processes one document event. Returning an error nacks the
// message, which redelivers it, so handlers must be idempotent.
type Handler func(ctx context.Context, ev DocEvent) error

// Bus routes document events to trigger handlers over an in-process
// watermill pub/sub. Topics are the collection chain plus the event kind,
// e.g. "users.updated" or "variants.lobby.deleted". Delivery is
// at-least-once: a nacked message is sent again.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *logrus.Logger
}

// NewBus builds a Bus backed by a buffered gochannel pub/sub. The buffer
// matters: trigger handlers write back to the store, which publishes again
// from inside the handler, and an unbuffered channel would deadlock there.
func NewBus(logger *logrus.Logger) *Bus {
	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
	}, &watermillLogger{logger: logger})
	return &Bus{pubSub: pubSub, logger: logger}
}

// Topic computes the routing key for a collection path and event kind:
// ("variants/abc/lobby", deleted) => "variants.lobby.deleted".
func Topic(collection string, kind store.EventKind) string {
	return store.CollectionChain(collection) + "." + string(kind)
}

// OnEvent bridges store mutations onto the bus. Wire it as the store's
// event callback. Publish failures are logged and dropped; the write
// itself has already committed.
func (b *Bus) OnEvent(ev store.Event) {
	payload, err := json.Marshal(DocEvent{
		Kind:       string(ev.Kind),
		Collection: ev.Ref.Collection,
		ID:         ev.Ref.ID,
		Before:     ev.Before,
		After:      ev.After,
	})
	if err != nil {
		b.logger.WithError(err).Error("failed to encode document event")
		return
	}

	topic := Topic(ev.Ref.Collection, ev.Kind)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		b.logger.WithError(err).WithField("topic", topic).Error("failed to publish document event")
	}
}

// Subscribe registers a handler for one topic. The handler runs on its own
// goroutine until ctx is cancelled or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context, topic string, h Handler) error {
	msgs, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	go func() {
		for msg := range msgs {
			var ev DocEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				b.logger.WithError(err).WithField("topic", topic).Error("malformed document event")
				msg.Ack()
				continue
			}
			if err := h(ctx, ev); err != nil {
				b.logger.WithError(err).WithFields(logrus.Fields{
					"topic": topic,
					"doc":   ev.Ref().Path(),
				}).Error("trigger handler failed, redelivering")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}()
	return nil
}

// Close shuts the pub/sub down and drops undelivered messages.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// watermillLogger adapts logrus to watermill's LoggerAdapter.
type watermillLogger struct {
	logger *logrus.Logger
	fields watermill.LogFields
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.entry(fields).WithError(err).Error(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.entry(fields).Debug(msg) // watermill's Info is chatty, keep it at debug
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.entry(fields).Debug(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.entry(fields).Trace(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{logger: l.logger, fields: l.fields.Add(fields)}
}

func (l *watermillLogger) entry(fields watermill.LogFields) *logrus.Entry {
	entry := logrus.NewEntry(l.logger)
	for k, v := range l.fields {
		entry = entry.WithField(k, v)
	}
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	return entry
}
