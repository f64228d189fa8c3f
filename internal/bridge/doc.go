// Package bridge lets a single-threaded scripting host run WebSocket
// servers.
//
// Scripts create servers with Start and address them afterwards through
// opaque string handles. Network events are never delivered on their own:
// the host calls Poll once per tick, and every event that arrived since the
// previous tick is dispatched to the script function registered for it,
// synchronously, before Poll returns.
//
// Events and the script callbacks they invoke:
//
//	open, fail, close  OnOpen / OnFail / OnClose   {server, connection}
//	message            OnMessage                   {server, connection, data}
//	http               OnHTTP                      {server, connection, resource, data} -> {status, data}
//
// An event without a registered function is dropped, except http which is
// answered with 404. Every server belongs to the script that started it and
// is shut down when that script is destroyed.
//
// A Bridge is not safe for concurrent use. All methods, including Poll, must
// be called from the host's goroutine.
package bridge
