package amqp

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionMessageRoutingKey(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{"login", "session.login"},
		{"register", "session.register"},
		{"logout", "session.logout"},
		{"refresh", "session.refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			msg := &SessionMessage{Kind: tt.kind}
			if got := msg.RoutingKey(); got != tt.want {
				t.Errorf("RoutingKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSessionMessageWireFields(t *testing.T) {
	msg := &SessionMessage{
		Kind:      "login",
		UserID:    7,
		Username:  "alice",
		RequestID: "req-1",
		Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"kind", "user_id", "username", "request_id", "timestamp"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, data)
		}
	}
	if _, ok := fields["token"]; ok {
		t.Errorf("message must not carry a token: %s", data)
	}
}

func TestSessionMessageOmitsAnonymousUser(t *testing.T) {
	data, err := (&SessionMessage{Kind: "logout"}).ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := fields["user_id"]; ok {
		t.Errorf("user_id present for anonymous message: %s", data)
	}
	if _, ok := fields["username"]; ok {
		t.Errorf("username present for anonymous message: %s", data)
	}
}

func TestSessionMessageFromJSONRejectsGarbage(t *testing.T) {
	if _, err := SessionMessageFromJSON([]byte("not json")); err == nil {
		t.Error("expected an error")
	}
}
