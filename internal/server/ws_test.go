package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestClient opens a WebSocket connection against the test server with an
// allowed origin header.
func dialTestClient(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", serverURL)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeTestEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: data}); err != nil {
		t.Fatalf("Failed to write %s: %v", event, err)
	}
}

// readUntilEvent reads frames until one carries the wanted event, skipping
// unrelated pushes such as interleaved user-list broadcasts.
func readUntilEvent(t *testing.T, conn *websocket.Conn, want string) json.RawMessage {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed while waiting for %q: %v", want, err)
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("Invalid frame: %v", err)
		}
		if env.Event == want {
			return env.Data
		}
	}
}

// TestWebSocketRelayIntegration tests the full wire-level flow against the
// global hub: registration pushes, room creation announcements, join
// acknowledgements, and room fan-out between two real connections.
func TestWebSocketRelayIntegration(t *testing.T) {
	testServer := httptest.NewServer(SetupRoutes())
	defer testServer.Close()

	cfg := NewConfig()
	cfg.AllowedOrigins = append(cfg.AllowedOrigins, testServer.URL)
	SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })

	StartHub()

	alice := dialTestClient(t, testServer.URL)
	bob := dialTestClient(t, testServer.URL)

	writeTestEvent(t, alice, EventJoinServer, JoinServerRequest{Username: "alice"})
	readUntilEvent(t, alice, EventNewUser)

	writeTestEvent(t, bob, EventJoinServer, JoinServerRequest{Username: "bob"})
	readUntilEvent(t, bob, EventNewUser)

	// alice creates a room; bob sees the announcement.
	writeTestEvent(t, alice, EventCreateRoom, RoomRequest{Room: "integration-room"})
	data := readUntilEvent(t, alice, EventRoomHistory)
	var history HistoryPayload
	if err := json.Unmarshal(data, &history); err != nil {
		t.Fatalf("Invalid history payload: %v", err)
	}
	if history.Room != "integration-room" || len(history.Messages) != 0 {
		t.Fatalf("Unexpected create reply: %+v", history)
	}

	data = readUntilEvent(t, bob, EventNewRoom)
	var announcement NewRoomPayload
	if err := json.Unmarshal(data, &announcement); err != nil {
		t.Fatalf("Invalid new_room payload: %v", err)
	}
	if announcement.Room != "integration-room" {
		t.Fatalf("Expected announcement for integration-room, got %q", announcement.Room)
	}

	// bob joins and receives the message alice sends.
	writeTestEvent(t, bob, EventJoinRoom, RoomRequest{Room: "integration-room"})
	readUntilEvent(t, bob, EventRoomHistory)

	writeTestEvent(t, alice, EventSendMessage, SendMessageRequest{
		Kind:      KindText,
		Content:   "over the wire",
		To:        "integration-room",
		Sender:    "alice",
		ChatName:  "integration-room",
		IsChannel: true,
	})

	data = readUntilEvent(t, bob, EventNewMessage)
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid message payload: %v", err)
	}
	if msg.Content != "over the wire" || msg.Sender != "alice" || msg.ChatName != "integration-room" {
		t.Fatalf("Unexpected message: %+v", msg)
	}
}

// TestWebSocketRejectsDisallowedOrigin tests that an upgrade from an origin
// outside the allow-list is refused.
func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	testServer := httptest.NewServer(SetupRoutes())
	defer testServer.Close()

	SetConfig(NewConfig())
	t.Cleanup(func() { SetConfig(nil) })

	StartHub()

	wsURL := "ws" + strings.TrimPrefix(testServer.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", "http://evil.example.com")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected upgrade to fail for disallowed origin")
	}
	if resp != nil {
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("Expected 403, got %d", resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
}

// TestHealthEndpoint tests the plain-text health check.
func TestHealthEndpoint(t *testing.T) {
	testServer := httptest.NewServer(SetupRoutes())
	defer testServer.Close()

	resp, err := http.Get(testServer.URL + "/")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("Expected text/plain, got %q", ct)
	}
}
