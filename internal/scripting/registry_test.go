package scripting

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-wsbridge/internal/bridge"
)

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()

	var opened, closed []string
	var received [][]byte
	require.NoError(t, r.Define(1, "onOpen", func(ev bridge.ConnectionEvent) error {
		opened = append(opened, ev.ConnectionHandle)
		return nil
	}))
	require.NoError(t, r.Define(1, "onClose", ConnectionFunc(func(ev bridge.ConnectionEvent) error {
		closed = append(closed, ev.ConnectionHandle)
		return nil
	})))
	require.NoError(t, r.Define(1, "onMessage", func(ev bridge.MessageEvent) error {
		received = append(received, ev.Data)
		return nil
	}))
	require.NoError(t, r.Define(1, "onHTTP", func(req bridge.HTTPRequest) (bridge.HTTPResponse, error) {
		return bridge.HTTPResponse{Status: 201, Data: []byte(req.Resource)}, nil
	}))

	require.NoError(t, r.OnOpen(1, "onOpen", bridge.ConnectionEvent{ConnectionHandle: "c1"}))
	require.NoError(t, r.OnClose(1, "onClose", bridge.ConnectionEvent{ConnectionHandle: "c1"}))
	require.NoError(t, r.OnMessage(1, "onMessage", bridge.MessageEvent{Data: []byte("ping")}))
	resp, err := r.OnHTTP(1, "onHTTP", bridge.HTTPRequest{Resource: "/x"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, opened)
	assert.Equal(t, []string{"c1"}, closed)
	assert.Equal(t, [][]byte{[]byte("ping")}, received)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, "/x", string(resp.Data))
}

func TestRegistry_FunctionNotFound(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Define(1, "onOpen", func(bridge.ConnectionEvent) error { return nil }))

	err := r.OnOpen(2, "onOpen", bridge.ConnectionEvent{})
	assert.True(t, errors.Is(err, ErrFunctionNotFound))

	err = r.OnFail(1, "missing", bridge.ConnectionEvent{})
	assert.True(t, errors.Is(err, ErrFunctionNotFound))
}

func TestRegistry_WrongSignature(t *testing.T) {
	r := NewRegistry()

	err := r.Define(1, "bad", func(int) {})
	assert.True(t, errors.Is(err, ErrWrongSignature))

	require.NoError(t, r.Define(1, "onOpen", func(bridge.ConnectionEvent) error { return nil }))
	err = r.OnMessage(1, "onOpen", bridge.MessageEvent{})
	assert.True(t, errors.Is(err, ErrWrongSignature))

	_, err = r.OnHTTP(1, "onOpen", bridge.HTTPRequest{})
	assert.True(t, errors.Is(err, ErrWrongSignature))
}

func TestRegistry_Destroy(t *testing.T) {
	r := NewRegistry()
	noop := func(bridge.ConnectionEvent) error { return nil }
	require.NoError(t, r.Define(1, "f", noop))
	require.NoError(t, r.Define(2, "f", noop))

	r.Destroy(1)

	assert.Error(t, r.OnOpen(1, "f", bridge.ConnectionEvent{}))
	assert.NoError(t, r.OnOpen(2, "f", bridge.ConnectionEvent{}))
}
