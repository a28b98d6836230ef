// Package server defines the wire-level event vocabulary shared by the relay
// server and its clients, along with error sentinels and close-error triage.
package server

import (
	"encoding/json"
	"errors"
	"strings"
)

// Inbound (client to server) event names.
const (
	EventJoinServer  = "join_server"
	EventJoinRoom    = "join_room"
	EventCreateRoom  = "create_room"
	EventSendMessage = "send_message"
)

// Outbound (server to client) event names.
const (
	EventNewUser     = "new_user"
	EventNewRoom     = "new_room"
	EventNewMessage  = "new_message"
	EventRoomHistory = "room_history"
	EventError       = "error"
)

// Message kinds.
const (
	KindText = "text"
	KindFile = "file"
)

// Errors surfaced by the directory and registry.
var (
	ErrDuplicateConnection = errors.New("connection already registered")
	ErrRoomAlreadyExists   = errors.New("room already exists")
	ErrRoomNotFound        = errors.New("room not found")
)

// Envelope is the framing for every WebSocket message: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// User is one online identity, keyed by its connection id.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is an immutable chat message record. ChatName is the name of the
// log it was stored under: the target room for channel messages, or the
// sender's display name for direct messages.
type Message struct {
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"`
	Binary   []byte `json:"binary,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Sender   string `json:"sender"`
	ChatName string `json:"chat_name"`
}

// JoinServerRequest announces a display name for the connection.
type JoinServerRequest struct {
	Username string `json:"username"`
}

// RoomRequest names a room for join_room and create_room.
type RoomRequest struct {
	Room string `json:"room"`
}

// SendMessageRequest is the client's outbound message intent. To is a room
// name when IsChannel is set, otherwise the target user's connection id.
// ChatName is the room the sender has selected, used as the storage key for
// channel messages.
type SendMessageRequest struct {
	Kind      string `json:"kind"`
	Content   string `json:"content,omitempty"`
	Binary    []byte `json:"binary,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	To        string `json:"to"`
	Sender    string `json:"sender"`
	ChatName  string `json:"chat_name"`
	IsChannel bool   `json:"is_channel"`
}

// HistoryPayload is the reply to join_room and create_room: the room's full
// stored log at the time of the call.
type HistoryPayload struct {
	Room     string    `json:"room"`
	Messages []Message `json:"messages"`
}

// NewRoomPayload announces a freshly created room to every connection.
type NewRoomPayload struct {
	Room string `json:"room"`
}

// ErrorPayload reports a failed join_room or create_room back to the caller.
type ErrorPayload struct {
	Event   string `json:"event"`
	Room    string `json:"room,omitempty"`
	Message string `json:"message"`
}

// encodeEvent marshals a payload into a framed Envelope ready for the wire.
func encodeEvent(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
