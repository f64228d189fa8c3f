package bridge

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/handle"
	"github.com/sirosfoundation/go-wsbridge/internal/metrics"
	"github.com/sirosfoundation/go-wsbridge/internal/transport"
	"github.com/sirosfoundation/go-wsbridge/pkg/logging"
)

// Handle kinds
const (
	KindServer     handle.Kind = "wsbridge.Server"
	KindConnection handle.Kind = "wsbridge.Connection"
)

// Bridge owns every server started by scripts
type Bridge struct {
	settings *Settings
	scripts  Scripts
	logger   *zap.Logger
	metrics  *metrics.Metrics
	servers  *handle.Table[*Instance]

	polling bool
	pending []*Instance
}

// New creates a Bridge. m may be nil.
func New(settings *Settings, scripts Scripts, logger *zap.Logger, m *metrics.Metrics) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Bridge{
		settings: settings,
		scripts:  scripts,
		logger:   logger.Named("wsbridge"),
		metrics:  m,
		servers:  handle.NewTable[*Instance](KindServer),
	}
}

func (b *Bridge) channels(port int) (errs, access *zap.Logger) {
	return logging.Channels(b.logger.Named("server").With(zap.Int("port", port)), b.settings.Verbose)
}

// Start creates a server listening on port and owned by script. Port 0
// picks a free port; see ListenAddr.
func (b *Bridge) Start(script ScriptID, port int) (string, error) {
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("%w: port %d out of range", ErrInvalidArgument, port)
	}

	inst := newInstance(b, script, port)
	addr := net.JoinHostPort(b.settings.ListenHost, strconv.Itoa(port))
	if err := inst.srv.Listen(addr); err != nil {
		inst.srv.Stop()
		return "", fmt.Errorf("%w: port %d: %v", ErrBind, port, err)
	}
	if err := inst.srv.StartAccept(); err != nil {
		inst.srv.Stop()
		return "", fmt.Errorf("%w: port %d: %v", ErrBind, port, err)
	}
	inst.state = StateListening

	inst.handle = b.servers.Add(inst, script)
	inst.logger = inst.logger.With(zap.String("server", string(inst.handle)))
	b.metrics.ServersActive.Inc()

	b.logger.Info("Server started",
		zap.String("server", string(inst.handle)),
		zap.Int("script", int(script)),
		zap.Stringer("address", inst.srv.Addr()))
	return string(inst.handle), nil
}

// Stop shuts a server down and invalidates its handle. Open connections
// are dropped without a close handshake. A server cannot be stopped from
// inside one of its own event handlers.
func (b *Bridge) Stop(serverHandle string) error {
	inst, err := b.server(serverHandle)
	if err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if inst.dispatching {
		return fmt.Errorf("stop %s: %w", serverHandle, ErrStopDuringDispatch)
	}
	b.servers.Remove(inst)
	inst.shutdown()
	return nil
}

// DestroyScript stops every server owned by script. A server whose event is
// being dispatched right now loses its handle immediately but is shut down
// when the current poll finishes.
func (b *Bridge) DestroyScript(script ScriptID) {
	for _, inst := range b.servers.Find(script) {
		b.release(inst)
	}
}

// Close stops every server. Called from inside a script function, the
// server being dispatched is shut down when the current poll finishes.
func (b *Bridge) Close() {
	for _, inst := range b.servers.All() {
		b.release(inst)
	}
	if !b.polling {
		b.reap()
	}
}

// release invalidates the handle of inst and shuts it down, or defers the
// shutdown to reap while one of its events is being dispatched
func (b *Bridge) release(inst *Instance) {
	b.servers.Remove(inst)
	if inst.dispatching {
		inst.stopPending = true
		b.pending = append(b.pending, inst)
		return
	}
	inst.shutdown()
}

// SetHandler registers the script function called for kind on a server.
// The name is not checked until the event fires; "" clears it.
func (b *Bridge) SetHandler(serverHandle string, kind EventKind, fn string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown event %q", ErrInvalidArgument, string(kind))
	}
	inst, err := b.server(serverHandle)
	if err != nil {
		return fmt.Errorf("set %s handler: %w", kind, err)
	}
	if fn == "" {
		delete(inst.handlers, kind)
		return nil
	}
	inst.handlers[kind] = fn
	return nil
}

// SetOpenHandler registers the function called when a client connects
func (b *Bridge) SetOpenHandler(serverHandle, fn string) error {
	return b.SetHandler(serverHandle, EventOpen, fn)
}

// SetFailHandler registers the function called when a handshake fails
func (b *Bridge) SetFailHandler(serverHandle, fn string) error {
	return b.SetHandler(serverHandle, EventFail, fn)
}

// SetCloseHandler registers the function called when a connection closes
func (b *Bridge) SetCloseHandler(serverHandle, fn string) error {
	return b.SetHandler(serverHandle, EventClose, fn)
}

// SetMessageHandler registers the function called for each message
func (b *Bridge) SetMessageHandler(serverHandle, fn string) error {
	return b.SetHandler(serverHandle, EventMessage, fn)
}

// SetHTTPHandler registers the function that answers plain HTTP requests
func (b *Bridge) SetHTTPHandler(serverHandle, fn string) error {
	return b.SetHandler(serverHandle, EventHTTP, fn)
}

// Send queues data for a connection of a server. The frame is written during
// the next Poll. opcode is 0 (continuation), 1 (text) or 2 (binary).
func (b *Bridge) Send(serverHandle, connectionHandle string, data []byte, opcode int) (err error) {
	defer func() { b.metrics.Send(err) }()

	op := transport.Opcode(opcode)
	if !op.Valid() {
		return fmt.Errorf("%w: invalid opcode: %d", ErrInvalidArgument, opcode)
	}
	inst, err := b.server(serverHandle)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	id, err := connectionID(connectionHandle)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	if err := inst.srv.Send(id, data, op); err != nil {
		switch {
		case errors.Is(err, transport.ErrConnectionNotFound):
			return fmt.Errorf("send: %w: %s", ErrNotFound, connectionHandle)
		case errors.Is(err, transport.ErrNotWebSocket), errors.Is(err, transport.ErrSendQueueFull):
			return fmt.Errorf("send: %w: %v", ErrInvalidArgument, err)
		default:
			return fmt.Errorf("send: %w", err)
		}
	}
	return nil
}

// ListenAddr returns the address a server is bound to
func (b *Bridge) ListenAddr(serverHandle string) (string, error) {
	inst, err := b.server(serverHandle)
	if err != nil {
		return "", err
	}
	addr := inst.srv.Addr()
	if addr == nil {
		return "", fmt.Errorf("%w: server has no address", ErrInvalidArgument)
	}
	return addr.String(), nil
}

// Servers returns the handles of the servers owned by script
func (b *Bridge) Servers(script ScriptID) []string {
	var out []string
	for _, inst := range b.servers.Find(script) {
		out = append(out, string(inst.handle))
	}
	return out
}

func (b *Bridge) server(serverHandle string) (*Instance, error) {
	return b.servers.Get(handle.Handle(serverHandle))
}

func connectionHandle(id transport.ConnID) string {
	return string(handle.New(KindConnection, string(id)))
}

func connectionID(connectionHandle string) (transport.ConnID, error) {
	kind, id, err := handle.Parse(handle.Handle(connectionHandle))
	if err != nil {
		return "", err
	}
	if kind != KindConnection {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, KindConnection, kind)
	}
	return transport.ConnID(id), nil
}
