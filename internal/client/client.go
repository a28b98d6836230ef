// Package client implements the WebSocket side of the relay client: dialing,
// event decoding, and feeding pushes into the state reconciler.
package client

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/relaychat/relaychat/internal/server"
)

// Client is a connected relay client. It owns the current State snapshot,
// applies server pushes from its read loop, and exposes the user actions the
// reconciler models: send, join, create, switch.
type Client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu    sync.RWMutex
	state State

	updates chan struct{}
	done    chan struct{}
}

// Dial connects to the relay at wsURL, announces the display name, and joins
// the first default room. origin must match the server's allow-list.
func Dial(wsURL, origin, username string) (*Client, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Client{
		conn:    conn,
		state:   NewState(username).WithConnected(),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}

	if err := c.writeEvent(server.EventJoinServer, server.JoinServerRequest{Username: username}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.readLoop()

	if len(DefaultRooms) > 0 {
		if err := c.JoinRoom(DefaultRooms[0]); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return c, nil
}

// Snapshot returns the current immutable view state.
func (c *Client) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Updates signals (coalesced) whenever a new snapshot is available.
func (c *Client) Updates() <-chan struct{} {
	return c.updates
}

// Done is closed when the server connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) apply(mutate func(State) State) {
	c.mu.Lock()
	c.state = mutate(c.state)
	c.mu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Client) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(server.Envelope{Event: event, Data: data})
}

// JoinRoom subscribes to a room. The joined set is updated optimistically;
// the room's message view is overwritten when the history reply arrives.
func (c *Client) JoinRoom(room string) error {
	if err := c.writeEvent(server.EventJoinRoom, server.RoomRequest{Room: room}); err != nil {
		return err
	}
	c.apply(func(s State) State { return s.MarkJoined(room) })
	return nil
}

// CreateRoom creates (or idempotently joins) a room and switches to it.
func (c *Client) CreateRoom(room string) error {
	if err := c.writeEvent(server.EventCreateRoom, server.RoomRequest{Room: room}); err != nil {
		return err
	}
	c.apply(func(s State) State {
		return s.ApplyNewRoom(room).
			MarkJoined(room).
			SelectChat(ChatTarget{IsChannel: true, Name: room})
	})
	return nil
}

// SwitchChat selects a different conversation.
func (c *Client) SwitchChat(target ChatTarget) {
	c.apply(func(s State) State { return s.SelectChat(target) })
}

// SendText sends a text message to the current conversation and echoes it
// locally before server confirmation.
func (c *Client) SendText(text string) error {
	if text == "" {
		return nil
	}
	return c.send(server.SendMessageRequest{Kind: server.KindText, Content: text})
}

// SendFile sends a file message to the current conversation.
func (c *Client) SendFile(fileName, mimeType string, data []byte) error {
	return c.send(server.SendMessageRequest{
		Kind:     server.KindFile,
		Binary:   data,
		MimeType: mimeType,
		FileName: fileName,
	})
}

func (c *Client) send(req server.SendMessageRequest) error {
	st := c.Snapshot()

	req.Sender = st.Username
	req.ChatName = st.Current.Name
	req.IsChannel = st.Current.IsChannel
	if st.Current.IsChannel {
		req.To = st.Current.Name
	} else {
		req.To = st.Current.ReceiverID
	}

	if err := c.writeEvent(server.EventSendMessage, req); err != nil {
		return err
	}

	echo := server.Message{
		Kind:     req.Kind,
		Content:  req.Content,
		Binary:   req.Binary,
		MimeType: req.MimeType,
		FileName: req.FileName,
		Sender:   st.Username,
		ChatName: st.Current.Name,
	}
	c.apply(func(s State) State { return s.AppendLocalEcho(echo) })
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env server.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("Invalid frame from server: %v", err)
			continue
		}

		switch env.Event {
		case server.EventNewUser:
			var users []server.User
			if err := json.Unmarshal(env.Data, &users); err != nil {
				log.Printf("Invalid new_user payload: %v", err)
				continue
			}
			c.apply(func(s State) State { return s.ApplyUserList(users) })

		case server.EventNewRoom:
			var payload server.NewRoomPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.Printf("Invalid new_room payload: %v", err)
				continue
			}
			c.apply(func(s State) State { return s.ApplyNewRoom(payload.Room) })

		case server.EventNewMessage:
			var msg server.Message
			if err := json.Unmarshal(env.Data, &msg); err != nil {
				log.Printf("Invalid new_message payload: %v", err)
				continue
			}
			c.apply(func(s State) State { return s.ApplyNewMessage(msg) })

		case server.EventRoomHistory:
			var payload server.HistoryPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.Printf("Invalid room_history payload: %v", err)
				continue
			}
			c.apply(func(s State) State { return s.ApplyHistory(payload.Room, payload.Messages) })

		case server.EventError:
			var payload server.ErrorPayload
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				log.Printf("Invalid error payload: %v", err)
				continue
			}
			log.Printf("Server rejected %s for room %q: %s", payload.Event, payload.Room, payload.Message)

		default:
			log.Printf("Unknown event %q from server", env.Event)
		}
	}
}
