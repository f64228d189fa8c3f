package bridge

import (
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/handle"
	"github.com/sirosfoundation/go-wsbridge/internal/transport"
)

// State is the lifecycle state of a server instance
type State int

const (
	StateCreated State = iota
	StateListening
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Instance is one WebSocket server started by a script
type Instance struct {
	bridge   *Bridge
	srv      *transport.Server
	owner    ScriptID
	verbose  int
	logger   *zap.Logger
	handle   handle.Handle
	handlers map[EventKind]string

	state State
	// dispatching is set while one of this server's script functions runs
	dispatching bool
	// stopPending defers shutdown to the end of the current poll
	stopPending bool
}

func newInstance(b *Bridge, owner ScriptID, port int) *Instance {
	inst := &Instance{
		bridge:   b,
		owner:    owner,
		verbose:  b.settings.Verbose,
		handlers: make(map[EventKind]string),
		state:    StateCreated,
	}

	errs, access := b.channels(port)
	inst.logger = errs

	opts := b.settings.Transport
	opts.UserAgent = b.settings.UserAgent
	opts.Logger = errs
	opts.AccessLogger = access
	inst.srv = transport.NewServer(opts, inst.transportHandlers())
	return inst
}

// State returns the lifecycle state
func (inst *Instance) State() State {
	return inst.state
}

// Owner returns the owning script
func (inst *Instance) Owner() ScriptID {
	return inst.owner
}

func (inst *Instance) transportHandlers() transport.Handlers {
	b := inst.bridge
	return transport.Handlers{
		Open: func(id transport.ConnID) error {
			return b.dispatchConnection(inst, EventOpen, id)
		},
		Fail: func(id transport.ConnID) error {
			return b.dispatchConnection(inst, EventFail, id)
		},
		Close: func(id transport.ConnID) error {
			return b.dispatchConnection(inst, EventClose, id)
		},
		Message: func(id transport.ConnID, msg *transport.Message) error {
			return b.dispatchMessage(inst, id, msg)
		},
		HTTP: func(id transport.ConnID) error {
			return b.dispatchHTTP(inst, id)
		},
	}
}

// active reports whether events may be delivered to scripts
func (inst *Instance) active() bool {
	return inst.state == StateListening && !inst.stopPending && inst.bridge.servers.Contains(inst)
}

func (inst *Instance) invoke(call func() error) error {
	inst.dispatching = true
	defer func() { inst.dispatching = false }()
	return call()
}

func (inst *Instance) shutdown() {
	if inst.state == StateStopped {
		return
	}
	wasListening := inst.state == StateListening
	inst.srv.StopListening()
	inst.srv.Stop()
	inst.state = StateStopped
	if wasListening {
		inst.bridge.metrics.ServersActive.Dec()
	}
	inst.logger.Info("Server stopped", zap.String("server", string(inst.handle)))
}
