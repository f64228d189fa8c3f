// Package scripting is an in-process scripting environment: scripts are
// sets of named Go functions, looked up by name when the bridge calls back.
// It is what the host binary embeds, and a reference for wiring the bridge
// into a real interpreter.
package scripting

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirosfoundation/go-wsbridge/internal/bridge"
)

var (
	ErrFunctionNotFound = errors.New("function not found")
	ErrWrongSignature   = errors.New("function has wrong signature")
)

// ConnectionFunc handles open, fail and close events
type ConnectionFunc func(ev bridge.ConnectionEvent) error

// MessageFunc handles message events
type MessageFunc func(ev bridge.MessageEvent) error

// HTTPFunc answers HTTP requests
type HTTPFunc func(req bridge.HTTPRequest) (bridge.HTTPResponse, error)

type funcKey struct {
	script bridge.ScriptID
	name   string
}

// Registry maps (script, function name) to Go functions
type Registry struct {
	mu    sync.RWMutex
	funcs map[funcKey]any
}

var _ bridge.Scripts = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[funcKey]any)}
}

// Define binds name to fn for script. fn must be a ConnectionFunc,
// MessageFunc or HTTPFunc (or a plain func with the same signature).
func (r *Registry) Define(script bridge.ScriptID, name string, fn any) error {
	switch f := fn.(type) {
	case ConnectionFunc, MessageFunc, HTTPFunc:
	case func(bridge.ConnectionEvent) error:
		fn = ConnectionFunc(f)
	case func(bridge.MessageEvent) error:
		fn = MessageFunc(f)
	case func(bridge.HTTPRequest) (bridge.HTTPResponse, error):
		fn = HTTPFunc(f)
	default:
		return fmt.Errorf("%w: %s is %T", ErrWrongSignature, name, fn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[funcKey{script, name}] = fn
	return nil
}

// Destroy forgets every function of script
func (r *Registry) Destroy(script bridge.ScriptID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.funcs {
		if k.script == script {
			delete(r.funcs, k)
		}
	}
}

func lookup[F any](r *Registry, script bridge.ScriptID, name string) (F, error) {
	var zero F
	r.mu.RLock()
	fn, ok := r.funcs[funcKey{script, name}]
	r.mu.RUnlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s (script %d)", ErrFunctionNotFound, name, script)
	}
	f, ok := fn.(F)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrWrongSignature, name)
	}
	return f, nil
}

func (r *Registry) callConnection(script bridge.ScriptID, name string, ev bridge.ConnectionEvent) error {
	f, err := lookup[ConnectionFunc](r, script, name)
	if err != nil {
		return err
	}
	return f(ev)
}

// OnOpen implements bridge.Scripts
func (r *Registry) OnOpen(script bridge.ScriptID, fn string, ev bridge.ConnectionEvent) error {
	return r.callConnection(script, fn, ev)
}

// OnFail implements bridge.Scripts
func (r *Registry) OnFail(script bridge.ScriptID, fn string, ev bridge.ConnectionEvent) error {
	return r.callConnection(script, fn, ev)
}

// OnClose implements bridge.Scripts
func (r *Registry) OnClose(script bridge.ScriptID, fn string, ev bridge.ConnectionEvent) error {
	return r.callConnection(script, fn, ev)
}

// OnMessage implements bridge.Scripts
func (r *Registry) OnMessage(script bridge.ScriptID, fn string, ev bridge.MessageEvent) error {
	f, err := lookup[MessageFunc](r, script, fn)
	if err != nil {
		return err
	}
	return f(ev)
}

// OnHTTP implements bridge.Scripts
func (r *Registry) OnHTTP(script bridge.ScriptID, fn string, req bridge.HTTPRequest) (bridge.HTTPResponse, error) {
	f, err := lookup[HTTPFunc](r, script, fn)
	if err != nil {
		return bridge.HTTPResponse{}, err
	}
	return f(req)
}
