// Package server routes outbound message intents: it resolves the audience,
// appends to the store, and fans the message out to live recipients.
package server

import "log"

// Delivery sends one encoded frame to the connection with the given id.
// It reports false when the connection is gone or its buffer is full; the
// frame is dropped either way.
type Delivery interface {
	Send(connID string, frame []byte) bool
}

// Router makes the routing decision for every send_message intent. Its core
// contract is append-then-send: the message is in the store before any
// recipient sees it, so a client that joins the room right after receiving
// the broadcast finds the message in the history it replays.
type Router struct {
	store    *MessageStore
	registry *RoomRegistry
	sessions *SessionDirectory
	delivery Delivery
}

// NewRouter wires the router against the shared store, registry, directory,
// and the delivery sink (the hub in production, a recorder in tests).
func NewRouter(store *MessageStore, registry *RoomRegistry, sessions *SessionDirectory, delivery Delivery) *Router {
	return &Router{store: store, registry: registry, sessions: sessions, delivery: delivery}
}

// Route accepts a message intent from the sender's connection. Sending is
// always accepted: a channel message to a room with no members (or to a room
// that was never created) is still appended under its routing key and the
// fan-out set is simply empty. No delivery failure is reported to the sender.
func (r *Router) Route(senderConnID string, req SendMessageRequest) {
	kind := req.Kind
	if kind == "" {
		kind = KindText
	}

	// Channel messages are stored under the room name; direct messages under
	// the sender's own display name (the pseudo-room thread convention).
	key := req.ChatName
	if !req.IsChannel {
		key = req.Sender
	}

	msg := Message{
		Kind:     kind,
		Content:  req.Content,
		Binary:   req.Binary,
		MimeType: req.MimeType,
		FileName: req.FileName,
		Sender:   req.Sender,
		ChatName: key,
	}

	// Append happens-before any fan-out.
	r.store.Append(key, msg)

	frame, err := encodeEvent(EventNewMessage, msg)
	if err != nil {
		log.Printf("Error encoding message from %q: %v", req.Sender, err)
		return
	}

	if !req.IsChannel {
		// Exactly one target; the sender's own view comes from its
		// optimistic local echo, not a server round-trip.
		if r.sessions.IsLive(req.To) {
			r.delivery.Send(req.To, frame)
		}
		return
	}

	for _, id := range r.registry.Members(req.To) {
		if id == senderConnID {
			continue
		}
		// Memberships are pruned on disconnect, but a concurrent disconnect
		// can still leave an id here briefly; resolve against live sessions
		// and drop silently.
		if !r.sessions.IsLive(id) {
			continue
		}
		r.delivery.Send(id, frame)
	}
}
