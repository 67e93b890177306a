package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func dialTestHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub(zerolog.Nop())
	t.Cleanup(hub.Stop)

	handler := NewHandler(hub, nil, zerolog.Nop())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	// Registration runs after the upgrade handshake; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return hub, conn
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.Broadcast("budget_update", map[string]int{"percentage": 42})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decoding envelope %q: %v", data, err)
	}
	if msg.Type != "budget_update" {
		t.Errorf("type = %q, want budget_update", msg.Type)
	}

	var payload map[string]int
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if payload["percentage"] != 42 {
		t.Errorf("percentage = %d, want 42", payload["percentage"])
	}
}

func TestBroadcastOrdering(t *testing.T) {
	hub, conn := dialTestHub(t)

	for _, event := range []string{"sessions_update", "severity_change", "games_closed"} {
		hub.Broadcast(event, struct{}{})
	}

	for _, want := range []string{"sessions_update", "severity_change", "games_closed"} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reading %s: %v", want, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding envelope: %v", err)
		}
		if msg.Type != want {
			t.Errorf("type = %q, want %q", msg.Type, want)
		}
	}
}

func TestStopClosesSubscribers(t *testing.T) {
	hub, conn := dialTestHub(t)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
