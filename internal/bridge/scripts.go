package bridge

import "github.com/sirosfoundation/go-wsbridge/internal/handle"

// ScriptID identifies the script context that owns a server
type ScriptID = handle.Owner

// EventKind names a script-visible server event
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventFail    EventKind = "fail"
	EventClose   EventKind = "close"
	EventMessage EventKind = "message"
	EventHTTP    EventKind = "http"
)

// EventKinds lists the events a script can register functions for
var EventKinds = []EventKind{EventOpen, EventFail, EventClose, EventMessage, EventHTTP}

// Valid reports whether k is a known event kind
func (k EventKind) Valid() bool {
	for _, known := range EventKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ConnectionEvent is passed to open, fail and close functions
type ConnectionEvent struct {
	ServerHandle     string
	ConnectionHandle string
}

// MessageEvent is passed to message functions
type MessageEvent struct {
	ServerHandle     string
	ConnectionHandle string
	Data             []byte
}

// HTTPRequest is passed to http functions
type HTTPRequest struct {
	ServerHandle     string
	ConnectionHandle string
	Resource         string
	Data             []byte
}

// HTTPResponse is returned by http functions
type HTTPResponse struct {
	Status int
	Data   []byte
}

// Scripts calls into the scripting environment. fn is the name the script
// registered for the event; it is not validated before the call. Calls
// happen synchronously inside Bridge.Poll.
type Scripts interface {
	OnOpen(script ScriptID, fn string, ev ConnectionEvent) error
	OnFail(script ScriptID, fn string, ev ConnectionEvent) error
	OnClose(script ScriptID, fn string, ev ConnectionEvent) error
	OnMessage(script ScriptID, fn string, ev MessageEvent) error
	OnHTTP(script ScriptID, fn string, req HTTPRequest) (HTTPResponse, error)
}
