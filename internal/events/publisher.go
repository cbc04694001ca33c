// Package events forwards committed session changes to a message broker.
package events

import (
	"context"
	"sync/atomic"

	"moneywire/internal/amqp"
	"moneywire/internal/log"
	"moneywire/internal/middleware/trace"
	"moneywire/internal/session"
)

const defaultBuffer = 256

// Sender is the broker side, satisfied by *amqp.Client.
type Sender interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Publisher turns session events into broker messages. Listen only enqueues;
// Run does the sending so a slow broker never delays a page.
type Publisher struct {
	sender  Sender
	logger  *log.Logger
	queue   chan *amqp.SessionMessage
	dropped atomic.Int64
}

func NewPublisher(sender Sender, logger *log.Logger, buffer int) *Publisher {
	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentAMQP})
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Publisher{
		sender: sender,
		logger: logger,
		queue:  make(chan *amqp.SessionMessage, buffer),
	}
}

// Message builds the broker message for ev.
func Message(ctx context.Context, ev session.Event) *amqp.SessionMessage {
	s := ev.Session
	if ev.Kind == session.EventLogout {
		s = ev.Previous
	}
	msg := &amqp.SessionMessage{
		Kind:      string(ev.Kind),
		UserID:    s.UserID(),
		RequestID: trace.GetRequestID(ctx),
		Timestamp: ev.At.UTC(),
	}
	if s.User != nil {
		msg.Username = s.User.Username
	}
	return msg
}

// Listen is a session.Listener.
func (p *Publisher) Listen(ctx context.Context, ev session.Event) {
	select {
	case p.queue <- Message(ctx, ev):
	default:
		p.dropped.Add(1)
		p.logger.WarnContext(ctx, "Session event dropped, queue full",
			log.FieldEvent, string(ev.Kind))
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Run sends queued messages until ctx is done, then drains what is left.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-p.queue:
			p.send(ctx, msg)
		case <-ctx.Done():
			p.drain()
			return nil
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case msg := <-p.queue:
			p.send(context.Background(), msg)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg *amqp.SessionMessage) {
	body, err := msg.ToJSON()
	if err != nil {
		p.logger.Error("Failed to encode session event", log.FieldError, err)
		return
	}
	if err := p.sender.Publish(ctx, msg.RoutingKey(), body); err != nil {
		p.logger.Warn("Failed to publish session event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, msg.Kind,
			log.FieldError, err)
	}
}
