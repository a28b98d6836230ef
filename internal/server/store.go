// Package server keeps the per-room append-only message logs that back
// history replay on join.
package server

import "sync"

// MessageStore holds one ordered, append-only log per routing key. Keys are
// room names for channel messages and sender display names for the
// direct-message pseudo-rooms, so logs are created lazily on first append
// rather than requiring an explicit create. Logs grow unbounded for the
// process lifetime; that is an accepted resource-model simplification.
type MessageStore struct {
	mu   sync.Mutex
	logs map[string][]Message
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{logs: make(map[string][]Message)}
}

// Append adds the message to the log for the routing key, creating the log if
// it does not exist yet. Append order under the store's lock is the single
// ordering authority for a room's history.
func (s *MessageStore) Append(key string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[key] = append(s.logs[key], msg)
}

// History returns a copy of the log for the routing key. Unknown keys yield
// an empty slice rather than an error, so replay of a just-created room never
// fails.
func (s *MessageStore) History(key string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[key]
	out := make([]Message, len(log))
	copy(out, log)
	return out
}

// Len returns the current length of the log for the routing key.
func (s *MessageStore) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs[key])
}
