// Package client mirrors server-pushed state into immutable view snapshots
// and drives the relay over a WebSocket connection.
package client

import "github.com/relaychat/relaychat/internal/server"

// DefaultRooms is the room set every client knows about before the server
// pushes anything. It mirrors the server's built-in DEFAULT_ROOMS value;
// against a server seeded with a different set, rooms outside this list are
// still reachable by name and show up once announced via new_room.
var DefaultRooms = []string{"general", "random", "jokes", "javascript"}

// ChatTarget identifies the selected conversation: a room when IsChannel is
// set, otherwise a direct-message peer addressed by connection id. Name is
// the room name or the peer's display name; it keys the local message view
// either way.
type ChatTarget struct {
	IsChannel  bool
	Name       string
	ReceiverID string
}

// State is one immutable snapshot of everything the rendering layer needs.
// Every method returns a new State built by structural copy; the receiver is
// never mutated, so a renderer holding the previous snapshot can diff safely.
// State is derived entirely from server push events plus local optimistic
// echo and is never independently authoritative.
type State struct {
	Username    string
	Connected   bool
	Current     ChatTarget
	JoinedRooms []string
	Users       []server.User
	Messages    map[string][]server.Message
	Rooms       []string
	Compose     string
}

// NewState builds the initial snapshot for a user: the default rooms are
// known, nothing is joined, and the first default room is selected.
func NewState(username string) State {
	rooms := append([]string(nil), DefaultRooms...)
	current := ChatTarget{IsChannel: true}
	if len(rooms) > 0 {
		current.Name = rooms[0]
	}
	return State{
		Username: username,
		Current:  current,
		Messages: map[string][]server.Message{},
		Rooms:    rooms,
	}
}

func (s State) cloneMessages() map[string][]server.Message {
	out := make(map[string][]server.Message, len(s.Messages))
	for k, v := range s.Messages {
		out[k] = v
	}
	return out
}

// WithConnected marks the snapshot as connected to the server.
func (s State) WithConnected() State {
	s.Connected = true
	return s
}

// WithCompose replaces the compose buffer.
func (s State) WithCompose(text string) State {
	s.Compose = text
	return s
}

// SelectChat switches the current conversation. A target whose message view
// does not exist yet gets an empty sequence, independent of server-side room
// existence.
func (s State) SelectChat(target ChatTarget) State {
	if _, ok := s.Messages[target.Name]; !ok {
		msgs := s.cloneMessages()
		msgs[target.Name] = nil
		s.Messages = msgs
	}
	s.Current = target
	return s
}

// ApplyUserList replaces the known user list with the server's full push.
func (s State) ApplyUserList(users []server.User) State {
	s.Users = append([]server.User(nil), users...)
	return s
}

// ApplyNewRoom records a room announced by the server. Visibility only; the
// room is not joined.
func (s State) ApplyNewRoom(name string) State {
	for _, room := range s.Rooms {
		if room == name {
			return s
		}
	}
	s.Rooms = append(append([]string(nil), s.Rooms...), name)
	return s
}

// ApplyNewMessage appends a pushed message to the view of the log it belongs
// to, creating that view lazily.
func (s State) ApplyNewMessage(msg server.Message) State {
	msgs := s.cloneMessages()
	msgs[msg.ChatName] = append(append([]server.Message(nil), msgs[msg.ChatName]...), msg)
	s.Messages = msgs
	return s
}

// ApplyHistory overwrites a room's message view wholesale with the server's
// history snapshot (never merged) and adds the room to the joined set.
func (s State) ApplyHistory(room string, history []server.Message) State {
	msgs := s.cloneMessages()
	msgs[room] = append([]server.Message(nil), history...)
	s.Messages = msgs
	return s.withJoined(room)
}

// MarkJoined records a room join before the server confirms it.
func (s State) MarkJoined(room string) State {
	return s.withJoined(room)
}

func (s State) withJoined(room string) State {
	for _, joined := range s.JoinedRooms {
		if joined == room {
			return s
		}
	}
	s.JoinedRooms = append(append([]string(nil), s.JoinedRooms...), room)
	return s
}

// AppendLocalEcho adds the sender's own message to the current conversation
// view before server confirmation and clears the compose buffer. There is no
// rollback if the send later fails.
func (s State) AppendLocalEcho(msg server.Message) State {
	msgs := s.cloneMessages()
	key := s.Current.Name
	msgs[key] = append(append([]server.Message(nil), msgs[key]...), msg)
	s.Messages = msgs
	s.Compose = ""
	return s
}

// CurrentMessages returns the message view of the selected conversation.
func (s State) CurrentMessages() []server.Message {
	return s.Messages[s.Current.Name]
}
