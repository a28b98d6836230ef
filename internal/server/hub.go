// Package server coordinates connection registration, event dispatch, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Hub owns the connection table and binds every connection to the shared
// session directory, room registry, message store, and broadcast router.
// Registration and unregistration flow through channels consumed by Run;
// event handlers are invoked directly from each connection's read pump and
// synchronize through the components' own locks.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}

	sessions *SessionDirectory
	registry *RoomRegistry
	store    *MessageStore
	router   *Router
}

// NewHub creates a Hub with empty directory, registry, and store. Default
// rooms are seeded separately (see StartHub) so configuration is applied
// first.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		sessions:   NewSessionDirectory(),
		registry:   NewRoomRegistry(),
		store:      NewMessageStore(),
	}
	h.router = NewRouter(h.store, h.registry, h.sessions, h)
	return h
}

// GetRegisterChan returns the channel used for registering new clients.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// Sessions returns the hub's session directory.
func (h *Hub) Sessions() *SessionDirectory {
	return h.sessions
}

// Registry returns the hub's room registry.
func (h *Hub) Registry() *RoomRegistry {
	return h.registry
}

// Store returns the hub's message store.
func (h *Hub) Store() *MessageStore {
	return h.store
}

// Send delivers one frame to the connection with the given id, implementing
// the router's Delivery sink. The lock is held across the send attempt so an
// unregistering client cannot have its channel closed mid-send.
func (h *Hub) Send(connID string, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in Send: %v", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, ok := h.clients[connID]
	if !ok || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// sendToAll delivers one frame to every currently registered connection.
func (h *Hub) sendToAll(frame []byte) {
	h.mutex.RLock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	h.mutex.RUnlock()

	for _, id := range ids {
		h.Send(id, frame)
	}
}

// Run starts the hub's main loop, handling client registration and
// unregistration until shutdown. This method should be called in a separate
// goroutine as it runs indefinitely.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client.id] = client
			clientCount := len(h.clients)
			h.mutex.Unlock()
			log.Printf("Client %s registered from %s. Total clients: %d", client.id, client.addr, clientCount)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.dropClient(client)
		}
	}
}

// dropClient removes the connection from the table, unbinds its user and room
// memberships, and broadcasts the updated user list. Safe to call for clients
// that were already dropped.
func (h *Hub) dropClient(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client.id]
	if ok {
		delete(h.clients, client.id)
		client.closed = true
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if !ok {
		return
	}

	// Close the channel after releasing the lock.
	close(client.send)

	h.sessions.Unregister(client.id)
	h.registry.DropConnection(client.id)
	log.Printf("Client %s unregistered from %s. Total clients: %d", client.id, client.addr, clientCount)

	h.broadcastUserList()
}

// handleJoinServer binds a display name to the connection and pushes the full
// user list to everyone. A duplicate registration leaves the directory
// unchanged and is only logged.
func (h *Hub) handleJoinServer(c *Client, username string) {
	user, err := h.sessions.Register(c.id, username)
	if err != nil {
		log.Printf("Registration for %s rejected: %v", c.id, err)
		return
	}
	log.Printf("User %q joined from %s", user.Username, c.addr)
	h.broadcastUserList()
}

// handleJoinRoom subscribes the connection to the room and replies with the
// room's history snapshot. Joining a never-created room reports an error on
// the caller's own channel; joining an already-joined room is idempotent.
func (h *Hub) handleJoinRoom(c *Client, room string) {
	if err := h.registry.Join(c.id, room); err != nil {
		c.reply(EventError, ErrorPayload{Event: EventJoinRoom, Room: room, Message: err.Error()})
		return
	}
	c.reply(EventRoomHistory, HistoryPayload{Room: room, Messages: h.store.History(room)})
}

// handleCreateRoom creates the room, announces it to every connection, and
// replies with its (empty) history. When the name is already taken the
// registry reports ErrRoomAlreadyExists and the handler falls back to a plain
// join, so create_room is idempotent at the wire while uniqueness stays
// observable at the registry.
func (h *Hub) handleCreateRoom(c *Client, room string) {
	err := h.registry.Create(room, c.id)
	switch {
	case err == nil:
		frame, encErr := encodeEvent(EventNewRoom, NewRoomPayload{Room: room})
		if encErr != nil {
			log.Printf("Error encoding new_room for %q: %v", room, encErr)
		} else {
			h.sendToAll(frame)
		}
	case errors.Is(err, ErrRoomAlreadyExists):
		if jerr := h.registry.Join(c.id, room); jerr != nil {
			c.reply(EventError, ErrorPayload{Event: EventCreateRoom, Room: room, Message: jerr.Error()})
			return
		}
	default:
		c.reply(EventError, ErrorPayload{Event: EventCreateRoom, Room: room, Message: err.Error()})
		return
	}
	c.reply(EventRoomHistory, HistoryPayload{Room: room, Messages: h.store.History(room)})
}

// handleSendMessage forwards the intent to the broadcast router. No reply:
// sending is always accepted and the sender renders its own optimistic echo.
func (h *Hub) handleSendMessage(c *Client, req SendMessageRequest) {
	h.router.Route(c.id, req)
}

// broadcastUserList pushes the full ordered user list to every connection.
func (h *Hub) broadcastUserList() {
	frame, err := encodeEvent(EventNewUser, h.sessions.Users())
	if err != nil {
		log.Printf("Error encoding user list: %v", err)
		return
	}
	h.sendToAll(frame)
}

// shutdownClients closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

var hub = NewHub()

var startHubOnce sync.Once

// StartHub seeds the default room set from the active configuration and
// starts the global hub loop. Safe to call more than once; only the first
// call starts the loop.
func StartHub() {
	for _, room := range currentConfig().DefaultRooms {
		hub.registry.Ensure(room)
	}
	startHubOnce.Do(func() {
		go hub.Run()
		log.Println("Hub started and ready to manage connections")
	})
}

// GetHub returns the global hub instance for shutdown coordination.
func GetHub() *Hub {
	return hub
}
