// Package server maintains the room registry: room names, creation metadata,
// and the membership set behind every fan-out decision.
package server

import (
	"sync"
	"time"
)

type roomEntry struct {
	createdAt time.Time
	members   map[string]struct{}
}

// RoomRegistry maps globally unique room names to their membership sets.
// Room existence is visible to every connection; membership is separate and
// tracked per connection id. All mutations are serialized by a single mutex,
// so two concurrent Create calls for the same name cannot both succeed.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*roomEntry
}

// NewRoomRegistry creates a registry pre-seeded with the given room names.
func NewRoomRegistry(names ...string) *RoomRegistry {
	r := &RoomRegistry{rooms: make(map[string]*roomEntry)}
	for _, name := range names {
		r.Ensure(name)
	}
	return r
}

// Ensure creates the named room with an empty membership set if it does not
// exist yet. Used for the default room set provisioned at startup.
func (r *RoomRegistry) Ensure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[name]; !ok {
		r.rooms[name] = &roomEntry{createdAt: time.Now(), members: make(map[string]struct{})}
	}
}

// Create registers a new room and adds the creating connection as its first
// member. It fails with ErrRoomAlreadyExists when the name is taken; the
// existing room is left untouched.
func (r *RoomRegistry) Create(name, creatorConnID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[name]; ok {
		return ErrRoomAlreadyExists
	}
	entry := &roomEntry{createdAt: time.Now(), members: make(map[string]struct{})}
	entry.members[creatorConnID] = struct{}{}
	r.rooms[name] = entry
	return nil
}

// Join adds the connection to the room's membership set. It fails with
// ErrRoomNotFound for rooms that were never created. Joining an already
// joined room is a no-op, so membership stays a set.
func (r *RoomRegistry) Join(connID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rooms[name]
	if !ok {
		return ErrRoomNotFound
	}
	entry.members[connID] = struct{}{}
	return nil
}

// Members returns a snapshot of the connection ids subscribed to the room.
// Unknown rooms yield an empty slice.
func (r *RoomRegistry) Members(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[name]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(entry.members))
	for id := range entry.members {
		members = append(members, id)
	}
	return members
}

// MemberCount returns the membership size of the room, zero when unknown.
func (r *RoomRegistry) MemberCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.rooms[name]
	if !ok {
		return 0
	}
	return len(entry.members)
}

// Exists reports whether the room has been created.
func (r *RoomRegistry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[name]
	return ok
}

// Rooms returns a snapshot of every known room name.
func (r *RoomRegistry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rooms))
	for name := range r.rooms {
		names = append(names, name)
	}
	return names
}

// DropConnection prunes the connection from every membership set. Called on
// disconnect so long-lived rooms do not accumulate stale ids.
func (r *RoomRegistry) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.rooms {
		delete(entry.members, connID)
	}
}
