// Package transport is a poll-driven WebSocket server built on
// gorilla/websocket and gin.
//
// Network work that has to block (accepting, reading frames, waiting for an
// HTTP response) runs on the goroutines net/http provides, but none of it
// reaches user code directly. Every lifecycle event is queued and only
// delivered when the owner calls Server.Poll, on the owner's goroutine.
// Outgoing frames are queued by Send and handed to the connection's writer
// goroutine by Poll, so neither Send nor Poll waits on a slow peer.
//
// Lifecycle per connection:
//
//	HTTP request     -> http
//	upgrade failure  -> fail
//	upgrade success  -> open, message*, close
//
// A connection stays resolvable through Server.Connection until its terminal
// event (close, fail, or the end of an http exchange) has been delivered.
package transport
