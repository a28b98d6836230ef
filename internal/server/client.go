// Package server manages individual client connections: read/write pumps,
// event decoding and dispatch, rate limiting, and lifecycle control.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one connected transport endpoint. Its id is stable for the
// connection's lifetime and doubles as the user id once join_server arrives.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	limiter        *frameLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a Client bound to the given WebSocket connection and hub.
// The send channel is buffered so slow readers do not block fan-out.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newFrameLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the connection's stable identifier.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's outbound frame channel.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// reply encodes an event and queues it on this connection's own send channel.
// This is the acknowledgement path for join_room and create_room.
func (c *Client) reply(event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s reply for %s: %v", event, c.addr, err)
		return
	}
	if !c.hub.Send(c.id, frame) {
		log.Printf("Dropped %s reply for %s: connection not live", event, c.addr)
	}
}

// dispatch decodes one inbound frame and routes it to the matching hub
// handler. Malformed frames and unknown events are logged and skipped.
func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.Printf("Invalid frame from %s: %v", c.addr, err)
		return
	}

	switch env.Event {
	case EventJoinServer:
		var req JoinServerRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Invalid join_server payload from %s: %v", c.addr, err)
			return
		}
		c.hub.handleJoinServer(c, req.Username)

	case EventJoinRoom:
		var req RoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Invalid join_room payload from %s: %v", c.addr, err)
			return
		}
		c.hub.handleJoinRoom(c, req.Room)

	case EventCreateRoom:
		var req RoomRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Invalid create_room payload from %s: %v", c.addr, err)
			return
		}
		c.hub.handleCreateRoom(c, req.Room)

	case EventSendMessage:
		var req SendMessageRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			log.Printf("Invalid send_message payload from %s: %v", c.addr, err)
			return
		}
		c.hub.handleSendMessage(c, req)

	default:
		log.Printf("Unknown event %q from %s", env.Event, c.addr)
	}
}

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.addr, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.addr, err)
		}
		return nil
	})
}

// logReadError logs the read failure with the right severity for its cause.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
}

// checkRateLimit reports whether the frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding frame", c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in readPump: %v", err)
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			break
		}

		if !c.checkRateLimit() {
			continue
		}

		c.dispatch(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Error closing connection in writePump: %v", err)
			}
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					if !isExpectedCloseError(err) {
						log.Printf("Error writing close message to %s: %v", c.addr, err)
					}
				}
				return
			}
			// One JSON envelope per frame keeps client-side decoding trivial.
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing frame to %s: %v", c.addr, err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Error writing ping message to %s: %v", c.addr, err)
				return
			}
		}
	}
}
