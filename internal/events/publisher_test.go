package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"moneywire/internal/amqp"
	"moneywire/internal/core"
	"moneywire/internal/log"
	"moneywire/internal/middleware/trace"
	"moneywire/internal/session"
)

type sent struct {
	key  string
	body []byte
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) Publish(_ context.Context, key string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{key: key, body: body})
	return f.err
}

func (f *fakeSender) Sent() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

var bob = &core.User{ID: 42, Username: "bob", Email: "bob@example.com"}

func TestMessage(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := trace.WithRequestID(context.Background(), "req-1")

	login := Message(ctx, session.Event{Kind: session.EventLogin, Session: session.Session{Token: "T", User: bob}, At: at})
	if login.Kind != "login" || login.UserID != 42 || login.Username != "bob" || login.RequestID != "req-1" || !login.Timestamp.Equal(at) {
		t.Errorf("login message = %+v", login)
	}
	if login.RoutingKey() != "session.login" {
		t.Errorf("routing key = %q", login.RoutingKey())
	}

	logout := Message(ctx, session.Event{Kind: session.EventLogout, Previous: session.Session{Token: "T", User: bob}, At: at})
	if logout.UserID != 42 || logout.Username != "bob" {
		t.Errorf("logout message = %+v", logout)
	}
}

func TestMessageNeverCarriesToken(t *testing.T) {
	msg := Message(context.Background(), session.Event{
		Kind:    session.EventRefresh,
		Session: session.Session{Token: "very-secret", User: bob},
		At:      time.Now(),
	})
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "very-secret") {
		t.Errorf("token leaked: %s", body)
	}
	back, err := amqp.SessionMessageFromJSON(body)
	if err != nil || back.Kind != "refresh" || back.UserID != 42 {
		t.Errorf("decoded = %+v, %v", back, err)
	}
}

func TestRunPublishesQueuedEvents(t *testing.T) {
	sender := &fakeSender{}
	p := NewPublisher(sender, log.Discard(), 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Listen(context.Background(), session.Event{Kind: session.EventLogin, Session: session.Session{Token: "T", User: bob}, At: time.Now()})
	p.Listen(context.Background(), session.Event{Kind: session.EventLogout, Previous: session.Session{Token: "T", User: bob}, At: time.Now()})

	cancel()
	<-done

	msgs := sender.Sent()
	if len(msgs) != 2 {
		t.Fatalf("sent %d messages, want 2", len(msgs))
	}
	if msgs[0].key != "session.login" || msgs[1].key != "session.logout" {
		t.Errorf("keys = %q, %q", msgs[0].key, msgs[1].key)
	}
}

func TestListenDropsWhenFull(t *testing.T) {
	p := NewPublisher(&fakeSender{}, log.Discard(), 1)
	ev := session.Event{Kind: session.EventLogin, At: time.Now()}
	p.Listen(context.Background(), ev)
	p.Listen(context.Background(), ev)
	if p.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", p.Dropped())
	}
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("broker down")}
	p := NewPublisher(sender, log.Discard(), 1)
	p.Listen(context.Background(), session.Event{Kind: session.EventLogin, At: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Run(ctx); err != nil {
		t.Errorf("Run = %v", err)
	}
	if len(sender.Sent()) != 1 {
		t.Error("message not attempted")
	}
}
