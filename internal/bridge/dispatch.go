package bridge

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/sirosfoundation/go-wsbridge/internal/metrics"
	"github.com/sirosfoundation/go-wsbridge/internal/transport"
)

func (b *Bridge) dispatchConnection(inst *Instance, kind EventKind, id transport.ConnID) error {
	fn, ok := b.handlerFor(inst, kind)
	if !ok {
		inst.logger.Debug("Event dropped", zap.String("kind", string(kind)), zap.String("connection", string(id)))
		return nil
	}
	conn, err := inst.srv.Connection(id)
	if err != nil {
		return b.inconsistency(inst, kind, id, err)
	}
	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.String("connection", string(id)),
		zap.String("remote", conn.RemoteAddr()),
	}
	if kind == EventClose {
		fields = append(fields, zap.Int("close_code", conn.CloseCode()))
	}
	inst.logger.Debug("Event", fields...)

	ev := ConnectionEvent{
		ServerHandle:     string(inst.handle),
		ConnectionHandle: connectionHandle(id),
	}
	err = inst.invoke(func() error {
		switch kind {
		case EventOpen:
			return b.scripts.OnOpen(inst.owner, fn, ev)
		case EventFail:
			return b.scripts.OnFail(inst.owner, fn, ev)
		default:
			return b.scripts.OnClose(inst.owner, fn, ev)
		}
	})
	b.handlerDone(inst, kind, fn, err)
	return nil
}

func (b *Bridge) dispatchMessage(inst *Instance, id transport.ConnID, msg *transport.Message) error {
	fn, ok := b.handlerFor(inst, EventMessage)
	if !ok {
		inst.logger.Debug("Event dropped", zap.String("kind", string(EventMessage)), zap.String("connection", string(id)))
		return nil
	}
	conn, err := inst.srv.Connection(id)
	if err != nil {
		return b.inconsistency(inst, EventMessage, id, err)
	}
	inst.logger.Debug("Event",
		zap.String("kind", string(EventMessage)),
		zap.String("connection", string(id)),
		zap.String("remote", conn.RemoteAddr()),
		zap.Stringer("opcode", msg.Opcode),
		zap.Int("size", len(msg.Payload)))

	ev := MessageEvent{
		ServerHandle:     string(inst.handle),
		ConnectionHandle: connectionHandle(id),
		Data:             msg.Payload,
	}
	err = inst.invoke(func() error {
		return b.scripts.OnMessage(inst.owner, fn, ev)
	})
	b.handlerDone(inst, EventMessage, fn, err)
	return nil
}

func (b *Bridge) dispatchHTTP(inst *Instance, id transport.ConnID) error {
	conn, err := inst.srv.Connection(id)
	if err != nil {
		return b.inconsistency(inst, EventHTTP, id, err)
	}
	inst.logger.Debug("Event",
		zap.String("kind", string(EventHTTP)),
		zap.String("connection", string(id)),
		zap.String("remote", conn.RemoteAddr()),
		zap.String("resource", conn.Resource()))

	if !inst.active() {
		conn.SetStatus(http.StatusServiceUnavailable)
		b.metrics.Event(string(EventHTTP), metrics.OutcomeDropped)
		return nil
	}
	fn, ok := inst.handlers[EventHTTP]
	if !ok {
		conn.SetStatus(http.StatusNotFound)
		b.metrics.Event(string(EventHTTP), metrics.OutcomeDropped)
		return nil
	}

	req := HTTPRequest{
		ServerHandle:     string(inst.handle),
		ConnectionHandle: connectionHandle(id),
		Resource:         conn.Resource(),
		Data:             conn.RequestBody(),
	}
	var resp HTTPResponse
	err = inst.invoke(func() error {
		var callErr error
		resp, callErr = b.scripts.OnHTTP(inst.owner, fn, req)
		return callErr
	})
	switch {
	case err != nil:
		conn.SetStatus(http.StatusInternalServerError)
	case resp.Status < 100 || resp.Status > 999:
		err = fmt.Errorf("%w: invalid status %d", ErrInvalidArgument, resp.Status)
		conn.SetStatus(http.StatusInternalServerError)
	default:
		conn.SetStatus(resp.Status)
		conn.SetBody(resp.Data)
	}
	b.handlerDone(inst, EventHTTP, fn, err)
	return nil
}

// handlerFor returns the function registered for kind, or false when the
// event is to be dropped
func (b *Bridge) handlerFor(inst *Instance, kind EventKind) (string, bool) {
	if !inst.active() {
		b.metrics.Event(string(kind), metrics.OutcomeDropped)
		return "", false
	}
	fn, ok := inst.handlers[kind]
	if !ok {
		b.metrics.Event(string(kind), metrics.OutcomeDropped)
		return "", false
	}
	return fn, true
}

func (b *Bridge) handlerDone(inst *Instance, kind EventKind, fn string, err error) {
	if err != nil {
		// Script errors belong to the script; polling continues.
		inst.logger.Warn("Script handler failed",
			zap.String("kind", string(kind)),
			zap.String("function", fn),
			zap.Error(err))
		b.metrics.Event(string(kind), metrics.OutcomeFailed)
		return
	}
	b.metrics.Event(string(kind), metrics.OutcomeDispatched)
}

func (b *Bridge) inconsistency(inst *Instance, kind EventKind, id transport.ConnID, cause error) error {
	inst.logger.Error("Event for expired connection",
		zap.String("kind", string(kind)),
		zap.String("connection", string(id)),
		zap.Error(cause))
	b.metrics.Event(string(kind), metrics.OutcomeFailed)
	return fmt.Errorf("%w: %s event for expired connection %s", ErrInternalInconsistency, kind, id)
}
