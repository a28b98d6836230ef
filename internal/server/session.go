// Package server tracks online identities in the session directory, the
// authoritative map from live connection ids to users.
package server

import "sync"

// SessionDirectory maps connection ids to the users they announced with
// join_server. It preserves registration order for user-list broadcasts and
// enforces at most one user per connection id. Display names are not required
// to be unique; two users sharing a name is a documented limitation of
// direct-message addressing.
type SessionDirectory struct {
	mu    sync.RWMutex
	users map[string]User
	order []string
}

// NewSessionDirectory creates an empty directory.
func NewSessionDirectory() *SessionDirectory {
	return &SessionDirectory{users: make(map[string]User)}
}

// Register binds a display name to a connection id. It fails with
// ErrDuplicateConnection if the id is already registered; that should not
// happen under correct transport semantics and is a defensive check only.
func (d *SessionDirectory) Register(connID, username string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.users[connID]; ok {
		return existing, ErrDuplicateConnection
	}

	user := User{ID: connID, Username: username}
	d.users[connID] = user
	d.order = append(d.order, connID)
	return user, nil
}

// Unregister removes the user bound to the connection id. Unknown ids are a
// no-op, so disconnects racing with registration never fail.
func (d *SessionDirectory) Unregister(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[connID]; !ok {
		return
	}
	delete(d.users, connID)
	for i, id := range d.order {
		if id == connID {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Users returns a snapshot of all online users in registration order.
func (d *SessionDirectory) Users() []User {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]User, 0, len(d.order))
	for _, id := range d.order {
		users = append(users, d.users[id])
	}
	return users
}

// IsLive reports whether the connection id currently has a registered user.
func (d *SessionDirectory) IsLive(connID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[connID]
	return ok
}
