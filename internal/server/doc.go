// Package server implements the relay's session directory, room registry,
// message store, and broadcast router behind a WebSocket transport shell.
//
// The implementation is organized into specialized files for configuration,
// the hub, clients, routing state, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
