package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newHubServer(t *testing.T, hub *Hub, userID string) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(context.Background(), userID, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHubDeliversOnlyToTargetUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	aliceURL := newHubServer(t, hub, "alice")
	bobURL := newHubServer(t, hub, "bob")

	alice, _, err := websocket.DefaultDialer.Dial(aliceURL, nil)
	if err != nil {
		t.Fatalf("dial alice: %v", err)
	}
	defer alice.Close()
	bob, _, err := websocket.DefaultDialer.Dial(bobURL, nil)
	if err != nil {
		t.Fatalf("dial bob: %v", err)
	}
	defer bob.Close()

	waitFor(t, func() bool { return hub.Connections("alice") == 1 && hub.Connections("bob") == 1 })

	hub.BroadcastToUser(context.Background(), "alice", EventTimerStarted, map[string]string{"id": "t1"})

	var msg struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	_ = alice.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := alice.ReadJSON(&msg); err != nil {
		t.Fatalf("alice read: %v", err)
	}
	if msg.Event != EventTimerStarted || msg.Data["id"] != "t1" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	_ = bob.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := bob.ReadMessage(); err == nil {
		t.Fatal("bob received an event meant for alice")
	}
}

func TestHubUnregistersClosedConnections(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	url := newHubServer(t, hub, "alice")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	waitFor(t, func() bool { return hub.Connections("alice") == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.Connections("alice") == 0 })

	// Broadcasting to a user without connections is a no-op.
	hub.BroadcastToUser(context.Background(), "alice", EventTimerStopped, nil)
}
